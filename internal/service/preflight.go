package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/internal/provider"
	"github.com/blustreamin/corpus-engine/internal/store"
)

type PreflightService struct {
	store    store.Store
	provider provider.Client
	logger   *zap.SugaredLogger
}

func NewPreflightService(s store.Store, p provider.Client) *PreflightService {
	return &PreflightService{
		store:    s,
		provider: p,
		logger:   zap.S().Named("preflight"),
	}
}

// Check probes the provider and both database directions before a run is
// allowed to flush anything. All three probes always execute so the
// diagnostic names every broken dependency, not just the first.
func (s *PreflightService) Check(ctx context.Context) error {
	providerOK := true
	if err := s.provider.Ping(ctx); err != nil {
		providerOK = false
		s.logger.Warnw("provider probe failed", "error", err)
	}

	readOK := true
	if err := s.store.PingRead(ctx); err != nil {
		readOK = false
		s.logger.Warnw("db read probe failed", "error", err)
	}

	writeOK := true
	if err := s.store.PingWrite(ctx); err != nil {
		writeOK = false
		s.logger.Warnw("db write probe failed", "error", err)
	}

	if providerOK && readOK && writeOK {
		return nil
	}
	return NewErrPreflightFailed(fmt.Sprintf("PROVIDER_OK=%t, DB_READ=%t, DB_WRITE=%t", providerOK, readOK, writeOK))
}
