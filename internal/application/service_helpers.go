package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

func (s *Service) ValidateToken(ctx context.Context, token string) (ports.AuthClaims, error) {
	if s.tokens == nil {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return claims, nil
}

func requireActor(actor Actor) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

func requireAdmin(actor Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() && actor.Role != "system" {
		return domain.ErrForbidden
	}
	return nil
}

// withStorageTimeout bounds every storage round trip of one operation.
func (s *Service) withStorageTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StorageTimeout)
}

// campaignFor hides campaigns the actor does not own behind ErrNotFound.
func (s *Service) campaignFor(ctx context.Context, actor Actor, campaignID string) (domain.Campaign, error) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return domain.Campaign{}, domain.ErrNotFound
	}
	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	if !actor.IsAdmin() && campaign.AdvertiserID != actor.SubjectID {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return campaign, nil
}

func (s *Service) experimentFor(ctx context.Context, actor Actor, experimentID string) (domain.Experiment, domain.Campaign, error) {
	exp, err := s.experiments.GetByID(ctx, strings.TrimSpace(experimentID))
	if err != nil {
		return domain.Experiment{}, domain.Campaign{}, err
	}
	campaign, err := s.campaignFor(ctx, actor, exp.CampaignID)
	if err != nil {
		return domain.Experiment{}, domain.Campaign{}, err
	}
	return exp, campaign, nil
}

func (s *Service) partnerFor(ctx context.Context, actor Actor) (domain.Partner, error) {
	return s.partners.GetByUserID(ctx, actor.SubjectID)
}

// runIdempotent replays the stored response for a repeated key and request,
// and rejects a reused key carrying a different request.
func runIdempotent[T any](ctx context.Context, s *Service, scope string, actor Actor, request any, responseCode int, fn func() (T, error)) (T, error) {
	var zero T
	key := strings.TrimSpace(actor.IdempotencyKey)
	if key == "" || s.idempotency == nil {
		return fn()
	}
	key = scope + ":" + actor.SubjectID + ":" + key
	requestHash := hashPayload(request)
	now := s.nowFn()

	existing, err := s.idempotency.Get(ctx, key, now)
	if err != nil {
		return zero, err
	}
	if existing != nil {
		if existing.RequestHash != requestHash || existing.Status != "completed" {
			return zero, domain.ErrIdempotencyConflict
		}
		var cached T
		if err := json.Unmarshal(existing.ResponseBody, &cached); err != nil {
			return zero, err
		}
		return cached, nil
	}
	if err := s.idempotency.Reserve(ctx, key, requestHash, now.Add(s.cfg.IdempotencyTTL)); err != nil {
		return zero, domain.ErrIdempotencyConflict
	}

	out, err := fn()
	if err != nil {
		if releaseErr := s.idempotency.Release(ctx, key); releaseErr != nil {
			slog.Default().WarnContext(ctx, "idempotency release failed",
				"module", "application",
				"layer", "service",
				"operation", scope,
				"outcome", "failure",
				"error", releaseErr,
			)
		}
		return zero, err
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return zero, err
	}
	if err := s.idempotency.Complete(ctx, key, responseCode, payload, s.nowFn()); err != nil {
		return zero, err
	}
	return out, nil
}

func hashPayload(value interface{}) string {
	blob, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// summaryCacheKey includes the partner's summary generation, so an entry
// filled from a read that raced a ledger write is never served afterwards.
func summaryCacheKey(partnerID, generation string, period domain.SummaryPeriod) string {
	return "earnings:summary:" + partnerID + ":" + generation + ":" + string(period)
}

func summaryGenerationKey(partnerID string) string {
	return "earnings:summary:gen:" + partnerID
}

// summaryGeneration returns "" until the partner's first ledger write.
func (s *Service) summaryGeneration(ctx context.Context, partnerID string) (string, error) {
	return s.cache.Get(ctx, summaryGenerationKey(partnerID))
}

// invalidateSummary moves the partner to a fresh generation. The generation
// outlives every entry written under the previous one.
func (s *Service) invalidateSummary(ctx context.Context, partnerID string) {
	if s.cache == nil {
		return
	}
	ttl := s.cfg.SummaryCacheTTL + time.Hour
	if err := s.cache.Set(ctx, summaryGenerationKey(partnerID), uuid.NewString(), ttl); err != nil {
		slog.Default().WarnContext(ctx, "summary cache invalidation failed",
			"module", "application",
			"layer", "service",
			"operation", "invalidate_summary",
			"outcome", "failure",
			"partner_id", partnerID,
			"error", err,
		)
	}
}

func payoutWindowKey(partnerID string) string {
	return "payout:rate:" + partnerID
}

// reservePayoutSlot takes one request from the partner's hourly window. The
// returned release gives the slot back when the request is not stored.
func (s *Service) reservePayoutSlot(ctx context.Context, partnerID string) (func(), error) {
	if s.cache == nil {
		return func() {}, nil
	}
	key := payoutWindowKey(partnerID)
	count, err := s.cache.IncrWithTTL(ctx, key, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%w: payout rate window: %v", domain.ErrDependencyUnavailable, err)
	}
	release := func() {
		if _, err := s.cache.DecrIfPresent(ctx, key); err != nil {
			slog.Default().WarnContext(ctx, "payout window release failed",
				"module", "application",
				"layer", "service",
				"operation", "request_payout",
				"outcome", "failure",
				"partner_id", partnerID,
				"error", err,
			)
		}
	}
	if count > int64(s.cfg.PayoutRequestsPerHour) {
		release()
		return nil, domain.ErrRateLimitExceeded
	}
	return release, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, domain.ErrBelowThreshold):
		return "below_threshold"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveExperimentTransition(string, string, string) {}
func (noopMetrics) ObservePayoutDecision(string) {}
func (noopMetrics) ObserveEarningsRecorded(string, float64) {}
func (noopMetrics) ObserveEventConsumed(string, string) {}
func (noopMetrics) ObserveHTTPRequest(string, string, int, time.Duration) {}
