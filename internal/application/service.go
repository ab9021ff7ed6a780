package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
)

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M62-Experiment-Earnings-Service"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if !cfg.BaseUnitRate.IsPositive() {
		cfg.BaseUnitRate = decimal.RequireFromString("0.001")
	}
	if cfg.MinimumPayoutThreshold.IsNegative() || cfg.MinimumPayoutThreshold.IsZero() {
		cfg.MinimumPayoutThreshold = decimal.NewFromInt(50)
	}
	if cfg.SummaryCacheTTL <= 0 {
		cfg.SummaryCacheTTL = 2 * time.Minute
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.PayoutRequestsPerHour <= 0 {
		cfg.PayoutRequestsPerHour = 5
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 5 * time.Second
	}
	calculator, _ := domain.NewEarningsCalculator(cfg.BaseUnitRate)

	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		cfg:         cfg,
		calculator:  calculator,
		experiments: deps.Experiments,
		campaigns:   deps.Campaigns,
		partners:    deps.Partners,
		earnings:    deps.Earnings,
		payouts:     deps.Payouts,
		idempotency: deps.Idempotency,
		eventDedup:  deps.EventDedup,
		cache:       deps.Cache,
		tokens:      deps.Tokens,
		metrics:     metrics,
		nowFn:       nowFn,
	}
}

func (s *Service) Config() Config { return s.cfg }
