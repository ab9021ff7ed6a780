package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/application"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
)

func (h *Handler) recordEarningsPeriod(w http.ResponseWriter, r *http.Request) {
	var req contracts.RecordEarningsPeriodRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeMappedError(r.Context(), w, "record_earnings_period", err)
		return
	}
	period, err := h.service.RecordEarningsPeriod(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "partner_id"), application.RecordEarningsPeriodInput{
		PeriodStart:      req.PeriodStart,
		PeriodEnd:        req.PeriodEnd,
		TotalImpressions: req.TotalImpressions,
		TotalEngagements: req.TotalEngagements,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "record_earnings_period", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toEarningsResponse(period))
}

func (h *Handler) transitionEarningsPeriod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFromContext(ctx)
	periodID := chi.URLParam(r, "period_id")

	var (
		period domain.EarningsPeriod
		err    error
	)
	switch chi.URLParam(r, "action") {
	case "process":
		period, err = h.service.ProcessEarningsPeriod(ctx, actor, periodID)
	case "paid":
		var req contracts.MarkEarningsPaidRequest
		if err = h.decodeAndValidate(r, &req); err == nil {
			period, err = h.service.MarkEarningsPeriodPaid(ctx, actor, periodID, req.TransactionID)
		}
	case "cancel":
		period, err = h.service.CancelEarningsPeriod(ctx, actor, periodID)
	default:
		err = domain.ErrNotFound
	}
	if err != nil {
		writeMappedError(ctx, w, "transition_earnings_period", err)
		return
	}
	writeSuccess(w, http.StatusOK, toEarningsResponse(period))
}

func (h *Handler) reviewPayout(w http.ResponseWriter, r *http.Request) {
	action := application.PayoutReviewAction(chi.URLParam(r, "action"))
	switch action {
	case application.PayoutReviewApprove, application.PayoutReviewReject, application.PayoutReviewComplete:
	default:
		writeMappedError(r.Context(), w, "review_payout", domain.ErrNotFound)
		return
	}
	if r.ContentLength > 0 {
		var req contracts.ReviewPayoutRequest
		if err := h.decodeAndValidate(r, &req); err != nil {
			writeMappedError(r.Context(), w, "review_payout", err)
			return
		}
	}
	payout, err := h.service.ReviewPayoutRequest(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "payout_id"), action)
	if err != nil {
		writeMappedError(r.Context(), w, "review_payout", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPayoutResponse(payout))
}
