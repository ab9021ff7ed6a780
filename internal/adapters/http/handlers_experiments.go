package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/application"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(r.Context()); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE", "not ready", err)
			writeError(r.Context(), w, http.StatusServiceUnavailable, "", "DEPENDENCY_UNAVAILABLE", "not ready", nil)
			return
		}
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) createExperiment(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreateExperimentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeMappedError(r.Context(), w, "create_experiment", err)
		return
	}
	exp, err := h.service.CreateExperiment(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "campaign_id"), application.CreateExperimentInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Variants:    toVariantAllocations(req.Variants),
	})
	if err != nil {
		writeMappedError(r.Context(), w, "create_experiment", err)
		return
	}
	writeSuccess(w, http.StatusCreated, exp)
}

func (h *Handler) listExperiments(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.ListExperiments(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "campaign_id"), listQueryFromRequest(r))
	if err != nil {
		writeMappedError(r.Context(), w, "list_experiments", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.ListResponse{Items: items, Pagination: page})
}

func (h *Handler) getExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := h.service.GetExperiment(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "experiment_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_experiment", err)
		return
	}
	writeSuccess(w, http.StatusOK, exp)
}

func (h *Handler) changeExperimentStatus(w http.ResponseWriter, r *http.Request) {
	var req contracts.UpdateExperimentStatusRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeMappedError(r.Context(), w, "change_experiment_status", err)
		return
	}
	exp, err := h.service.ChangeExperimentStatus(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "experiment_id"), application.ChangeExperimentStatusInput{
		Status:          strings.TrimSpace(req.Status),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "change_experiment_status", err)
		return
	}
	writeSuccess(w, http.StatusOK, exp)
}

func (h *Handler) replaceVariants(w http.ResponseWriter, r *http.Request) {
	var req contracts.ReplaceVariantsRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeMappedError(r.Context(), w, "replace_variants", err)
		return
	}
	exp, err := h.service.ReplaceVariants(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "experiment_id"), application.ReplaceVariantsInput{
		Variants:        toVariantAllocations(req.Variants),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "replace_variants", err)
		return
	}
	writeSuccess(w, http.StatusOK, exp)
}

func (h *Handler) experimentResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.GetExperimentResults(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "experiment_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "experiment_results", err)
		return
	}
	writeSuccess(w, http.StatusOK, results)
}
