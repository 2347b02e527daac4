package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/blustreamin/corpus-engine/internal/api_server"
	"github.com/blustreamin/corpus-engine/internal/corpus"
	"github.com/blustreamin/corpus-engine/pkg/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the corpus engine API",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine("api")
		if err != nil {
			return err
		}
		defer e.Close()

		metrics.RegisterMetrics()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		// nightly corpus audit
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(e.cfg.Service.AuditSchedule, func() {
			report := e.audit.RunAudit(ctx, corpus.CategoryIDs())
			zap.S().Named("scheduler").Infow("scheduled audit finished",
				"verdict", report.Verdict, "errors", len(report.Errors))
		}); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()

		handler := apiserver.NewHandler(e.jobs, e.orchestrator, e.audit, e.repair, e.flush)

		go func() {
			defer cancel()
			listener, err := newListener(e.cfg.Service.Address)
			if err != nil {
				zap.S().Fatalf("creating listener: %s", err)
			}

			server := apiserver.New(e.cfg, handler, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalf("Error running server: %s", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(e.cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalf("creating listener: %s", err)
			}

			metricsServer := apiserver.NewMetricServer(e.cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalf("Error running metrics server: %s", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
