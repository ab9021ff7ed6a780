package application

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/contracts"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

// RequestPayout runs the payout gate against the partner's balance as seen
// under the partner lock and stores an authorized PENDING request.
func (s *Service) RequestPayout(ctx context.Context, actor Actor, input RequestPayoutInput) (domain.PayoutRequest, error) {
	if err := requireActor(actor); err != nil {
		return domain.PayoutRequest{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()

	partner, err := s.partnerFor(ctx, actor)
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	methodID := strings.TrimSpace(input.PaymentMethodID)
	if !partner.OwnsPaymentMethod(methodID) {
		return domain.PayoutRequest{}, domain.ErrNotFound
	}

	request := struct {
		PartnerID       string
		Amount          string
		PaymentMethodID string
	}{PartnerID: partner.PartnerID, Amount: input.Amount.String(), PaymentMethodID: methodID}
	return runIdempotent(ctx, s, "request_payout", actor, request, http.StatusOK, func() (domain.PayoutRequest, error) {
		release, err := s.reservePayoutSlot(ctx, partner.PartnerID)
		if err != nil {
			return domain.PayoutRequest{}, err
		}
		now := s.nowFn()
		created, err := s.payouts.CreateAuthorized(ctx, partner.PartnerID, func(available decimal.Decimal) (domain.PayoutRequest, error) {
			auth, err := domain.AuthorizePayout(input.Amount, available, s.cfg.MinimumPayoutThreshold)
			if err != nil {
				return domain.PayoutRequest{}, err
			}
			return domain.PayoutRequest{
				PayoutID:           uuid.NewString(),
				PartnerID:          partner.PartnerID,
				RequestedAmount:    auth.RequestedAmount,
				Currency:           s.cfg.DefaultCurrency,
				Status:             domain.PayoutStatusPending,
				PaymentMethodID:    methodID,
				AuthorizationToken: auth.Token,
				RequestDate:        now,
				Version:            1,
				CreatedAt:          now,
				UpdatedAt:          now,
			}, nil
		}, s.payoutRequestedEvents(actor))
		s.metrics.ObservePayoutDecision(outcomeOf(err))
		if err != nil {
			release()
			return domain.PayoutRequest{}, err
		}
		s.invalidateSummary(ctx, partner.PartnerID)
		return created, nil
	})
}

func (s *Service) ListPayoutRequests(ctx context.Context, actor Actor, query ListQuery) ([]domain.PayoutRequest, contracts.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, contracts.Pagination{}, err
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()
	partner, err := s.partnerFor(ctx, actor)
	if err != nil {
		return nil, contracts.Pagination{}, err
	}
	q := ports.PayoutQuery{PartnerID: partner.PartnerID}
	if query.Status != "" {
		q.Status = domain.PayoutStatus(strings.ToUpper(strings.TrimSpace(query.Status)))
	}
	q.Limit, q.Offset = normalizePage(query.Limit, query.Offset)
	items, total, err := s.payouts.List(ctx, q)
	if err != nil {
		return nil, contracts.Pagination{}, err
	}
	return items, contracts.Pagination{Limit: q.Limit, Offset: q.Offset, Total: total}, nil
}

// ReviewPayoutRequest applies an admin decision: approve or reject a PENDING
// request, or complete an APPROVED one.
func (s *Service) ReviewPayoutRequest(ctx context.Context, actor Actor, payoutID string, action PayoutReviewAction) (domain.PayoutRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.PayoutRequest{}, err
	}
	var target domain.PayoutStatus
	switch action {
	case PayoutReviewApprove:
		target = domain.PayoutStatusApproved
	case PayoutReviewReject:
		target = domain.PayoutStatusRejected
	case PayoutReviewComplete:
		target = domain.PayoutStatusCompleted
	default:
		return domain.PayoutRequest{}, domain.NewValidationError(domain.ReasonInvalidRequest, "unknown review action", map[string]any{"action": string(action)})
	}
	ctx, cancel := s.withStorageTimeout(ctx)
	defer cancel()

	current, err := s.payouts.GetByID(ctx, strings.TrimSpace(payoutID))
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	next, err := domain.TransitionPayoutRequest(current, target, actor.SubjectID, s.nowFn())
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	saved, err := s.payouts.UpdateStatus(ctx, next, current.Version, s.payoutStatusEvents(actor, current.Status))
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	s.invalidateSummary(ctx, saved.PartnerID)
	return saved, nil
}
