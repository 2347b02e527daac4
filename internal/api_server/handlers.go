package apiserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/internal/corpus"
	"github.com/blustreamin/corpus-engine/internal/service"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

// Handler exposes the orchestration engine over HTTP. Jobs run in the
// background; the API only ever starts, observes, and stops them.
type Handler struct {
	jobs         *service.JobService
	orchestrator *service.Orchestrator
	audit        *service.AuditService
	repair       *service.RepairService
	flush        *service.FlushService
	logger       *zap.SugaredLogger
}

func NewHandler(
	jobs *service.JobService,
	orchestrator *service.Orchestrator,
	audit *service.AuditService,
	repair *service.RepairService,
	flush *service.FlushService,
) *Handler {
	return &Handler{
		jobs:         jobs,
		orchestrator: orchestrator,
		audit:        audit,
		repair:       repair,
		flush:        flush,
		logger:       zap.S().Named("handlers"),
	}
}

type startJobRequest struct {
	Token  string `json:"token"`
	Resume bool   `json:"resume"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid request body"})
		return
	}

	if latest, err := h.jobs.LatestForScope(r.Context(), model.ScopeGlobal); err == nil &&
		latest != nil && !latest.IsTerminal() {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, errorResponse{Error: "a run is already in progress: " + latest.ID})
		return
	}

	job, err := h.jobs.StartJob(r.Context(), model.JobKindResetRebuild, model.ScopeGlobal, "reset-rebuild run")
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}

	// The run outlives the request; it is cancelled by process shutdown,
	// not by the client hanging up.
	go func() {
		if err := h.orchestrator.Run(context.Background(), job.ID, service.RunOptions{
			ResumeFromRebuild: req.Resume,
			FlushToken:        req.Token,
		}); err != nil {
			h.logger.Errorw("run aborted", "job_id", job.ID, "error", err)
		}
	}()

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, job)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var notFound *service.ErrJobNotFound
		if errors.As(err, &notFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, errorResponse{Error: err.Error()})
			return
		}
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	render.JSON(w, r, job)
}

func (h *Handler) LatestJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.LatestForScope(r.Context(), model.ScopeGlobal)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	if job == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: "no runs recorded"})
		return
	}
	render.JSON(w, r, job)
}

func (h *Handler) StopJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.jobs.RequestStop(r.Context(), id); err != nil {
		var notFound *service.ErrJobNotFound
		if errors.As(err, &notFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, errorResponse{Error: err.Error()})
			return
		}
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	render.JSON(w, r, map[string]string{"status": "stop requested", "id": id})
}

func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	report := h.audit.RunAudit(r.Context(), corpus.CategoryIDs())
	render.JSON(w, r, report)
}

func (h *Handler) RunRepair(w http.ResponseWriter, r *http.Request) {
	report := h.audit.RunAudit(r.Context(), corpus.CategoryIDs())
	lines := h.repair.Repair(r.Context(), report)
	render.JSON(w, r, map[string]any{"report": report, "log": lines})
}

type flushRequest struct {
	Token string `json:"token"`
}

func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	var req flushRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid request body"})
		return
	}

	deleted, err := h.flush.FlushAll(r.Context(), req.Token, nil, "")
	if err != nil {
		var lock *service.ErrSafetyLock
		if errors.As(err, &lock) {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, errorResponse{Error: err.Error()})
			return
		}
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	render.JSON(w, r, map[string]int64{"deleted": deleted})
}
