package http

import (
	"net/http"

	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/application"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
)

func (h *Handler) earningsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetEarningsSummary(r.Context(), actorFromContext(r.Context()), r.URL.Query().Get("period"))
	if err != nil {
		writeMappedError(r.Context(), w, "earnings_summary", err)
		return
	}
	writeSuccess(w, http.StatusOK, summary)
}

func (h *Handler) listEarningsPeriods(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.ListEarningsPeriods(r.Context(), actorFromContext(r.Context()), listQueryFromRequest(r))
	if err != nil {
		writeMappedError(r.Context(), w, "list_earnings_periods", err)
		return
	}
	out := make([]contracts.EarningsPeriodResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toEarningsResponse(item))
	}
	writeSuccess(w, http.StatusOK, contracts.ListResponse{Items: out, Pagination: page})
}

func (h *Handler) requestPayout(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreatePayoutRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeMappedError(r.Context(), w, "request_payout", err)
		return
	}
	payout, err := h.service.RequestPayout(r.Context(), actorFromContext(r.Context()), application.RequestPayoutInput{
		Amount:          req.Amount,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "request_payout", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPayoutResponse(payout))
}

func (h *Handler) listPayouts(w http.ResponseWriter, r *http.Request) {
	items, page, err := h.service.ListPayoutRequests(r.Context(), actorFromContext(r.Context()), listQueryFromRequest(r))
	if err != nil {
		writeMappedError(r.Context(), w, "list_payouts", err)
		return
	}
	out := make([]contracts.PayoutRequestResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toPayoutResponse(item))
	}
	writeSuccess(w, http.StatusOK, contracts.ListResponse{Items: out, Pagination: page})
}
