package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/application"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a single JSON value into dst and checks its
// validate tags.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError(domain.ReasonInvalidRequest, "malformed JSON body", map[string]any{"error": err.Error()})
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.NewValidationError(domain.ReasonInvalidRequest, "request body must contain a single JSON value", nil)
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return domain.NewValidationError(domain.ReasonInvalidRequest, err.Error(), nil)
		}
		fields := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			name := fe.Namespace()
			if _, rest, ok := strings.Cut(name, "."); ok {
				name = rest
			}
			fields[name] = fe.Tag()
		}
		return domain.NewValidationError(domain.ReasonInvalidRequest, "request failed validation", map[string]any{"fields": fields})
	}
	return nil
}

func parseIntDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func listQueryFromRequest(r *http.Request) application.ListQuery {
	q := r.URL.Query()
	return application.ListQuery{
		Status: strings.TrimSpace(q.Get("status")),
		Limit:  parseIntDefault(q.Get("limit"), 20),
		Offset: parseIntDefault(q.Get("offset"), 0),
	}
}

func toVariantAllocations(in []contracts.VariantRequest) []domain.VariantAllocation {
	out := make([]domain.VariantAllocation, 0, len(in))
	for _, v := range in {
		out = append(out, domain.VariantAllocation{
			CreativeID:        strings.TrimSpace(v.AdCreativeID),
			Name:              strings.TrimSpace(v.Name),
			TrafficAllocation: v.TrafficAllocation,
		})
	}
	return out
}

func toEarningsResponse(p domain.EarningsPeriod) contracts.EarningsPeriodResponse {
	return contracts.EarningsPeriodResponse{
		ID:               p.PeriodID,
		PartnerID:        p.PartnerID,
		PeriodStart:      p.PeriodStart,
		PeriodEnd:        p.PeriodEnd,
		TotalImpressions: p.TotalImpressions,
		TotalEngagements: p.TotalEngagements,
		CommissionRate:   p.CommissionRate.String(),
		Amount:           p.Amount.StringFixed(2),
		Status:           string(p.Status),
		PaidDate:         p.PaidDate,
		TransactionID:    p.TransactionID,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
	}
}

func toPayoutResponse(p domain.PayoutRequest) contracts.PayoutRequestResponse {
	return contracts.PayoutRequestResponse{
		ID:                 p.PayoutID,
		PartnerID:          p.PartnerID,
		RequestedAmount:    p.RequestedAmount.StringFixed(2),
		Currency:           p.Currency,
		Status:             string(p.Status),
		PaymentMethodID:    p.PaymentMethodID,
		AuthorizationToken: p.AuthorizationToken,
		RequestDate:        p.RequestDate,
		ProcessedDate:      p.ProcessedDate,
		Version:            p.Version,
	}
}
