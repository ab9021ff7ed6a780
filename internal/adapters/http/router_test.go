package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/auth"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/application"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/domain"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details map[string]any  `json:"details"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repos := memory.NewRepositories()
	repos.Campaigns.Put(domain.Campaign{
		CampaignID:   "camp-1",
		AdvertiserID: "adv-1",
		CreativeIDs:  []string{"cr-1", "cr-2"},
	})
	repos.Partners.Put(domain.Partner{
		PartnerID:        "partner-1",
		UserID:           "user-p1",
		CommissionRate:   decimal.RequireFromString("0.3"),
		PaymentMethodIDs: []string{"pm-1"},
	})
	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			BaseUnitRate:           decimal.RequireFromString("0.001"),
			MinimumPayoutThreshold: decimal.NewFromInt(50),
		},
		Experiments: repos.Experiments,
		Campaigns:   repos.Campaigns,
		Partners:    repos.Partners,
		Earnings:    repos.Earnings,
		Payouts:     repos.Payouts,
		Idempotency: repos.Idempotency,
		EventDedup:  repos.EventDedup,
		Cache:       memory.NewCache(),
		Tokens:      auth.DevVerifier{},
		Metrics:     recorder,
		Clock:       func() time.Time { return testNow },
	})
	return NewRouter(NewHandler(svc, Options{Metrics: recorder, Gatherer: registry}))
}

func doRequest(t *testing.T, router http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func TestRequiresBearerToken(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/v1/experiments/exp-1", "", "")
	if rec.Code != http.StatusUnauthorized || env.Code != "UNAUTHORIZED" {
		t.Fatalf("expected 401 UNAUTHORIZED, got %d %+v", rec.Code, env)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestExperimentLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	const token = "advertiser:adv-1"

	rec, env := doRequest(t, router, http.MethodPost, "/v1/campaigns/camp-1/experiments", token,
		`{"name":"Headline","startDate":"2026-03-16T00:00:00Z","variants":[{"adCreativeId":"cr-1","name":"A","trafficAllocation":60},{"adCreativeId":"cr-2","name":"B","trafficAllocation":30}]}`)
	if rec.Code != http.StatusBadRequest || env.Error != domain.ReasonAllocationNot100 || env.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected allocation_not_100, got %d %+v", rec.Code, env)
	}

	rec, env = doRequest(t, router, http.MethodPost, "/v1/campaigns/camp-1/experiments", token,
		`{"name":"Headline","startDate":"2026-03-16T00:00:00Z","variants":[{"adCreativeId":"cr-1","name":"A"},{"adCreativeId":"cr-2","name":"B"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var exp domain.Experiment
	if err := json.Unmarshal(env.Data, &exp); err != nil {
		t.Fatalf("decode experiment: %v", err)
	}
	if exp.Status != domain.ExperimentStatusDraft || len(exp.Variants) != 2 || exp.Variants[0].TrafficAllocation != 50 {
		t.Fatalf("unexpected experiment %+v", exp)
	}

	statusPath := "/v1/experiments/" + exp.ExperimentID + "/status"
	rec, _ = doRequest(t, router, http.MethodPatch, statusPath, token, `{"status":"ACTIVE","expectedVersion":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected activation, got %d %s", rec.Code, rec.Body.String())
	}
	rec, env = doRequest(t, router, http.MethodPut, statusPath, token, `{"status":"PAUSED","expectedVersion":1}`)
	if rec.Code != http.StatusConflict || env.Code != "CONCURRENT_MODIFICATION" {
		t.Fatalf("expected stale version conflict, got %d %+v", rec.Code, env)
	}
	rec, env = doRequest(t, router, http.MethodPut, statusPath, token, `{"status":"DRAFT"}`)
	if rec.Code != http.StatusConflict || env.Code != "INVALID_TRANSITION" {
		t.Fatalf("expected invalid transition, got %d %+v", rec.Code, env)
	}

	rec, _ = doRequest(t, router, http.MethodGet, "/v1/experiments/"+exp.ExperimentID+"/results", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected results, got %d %s", rec.Code, rec.Body.String())
	}
	rec, env = doRequest(t, router, http.MethodGet, "/v1/experiments/"+exp.ExperimentID, "advertiser:adv-2", "")
	if rec.Code != http.StatusNotFound || env.Code != "NOT_FOUND" {
		t.Fatalf("expected foreign advertiser to get 404, got %d %+v", rec.Code, env)
	}
}

func TestRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec, env := doRequest(t, router, http.MethodPost, "/v1/campaigns/camp-1/experiments", "advertiser:adv-1",
		`{"name":"x","startDate":"2026-03-16T00:00:00Z","variants":[],"budget":5}`)
	if rec.Code != http.StatusBadRequest || env.Error != domain.ReasonInvalidRequest {
		t.Fatalf("expected invalid_request, got %d %+v", rec.Code, env)
	}

	rec, env = doRequest(t, router, http.MethodPatch, "/v1/experiments/exp-1/status", "advertiser:adv-1", `{}`)
	if rec.Code != http.StatusBadRequest || env.Details["fields"] == nil {
		t.Fatalf("expected field-level validation details, got %d %+v", rec.Code, env)
	}
}

func TestPayoutFlowOverHTTP(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec, env := doRequest(t, router, http.MethodPost, "/v1/admin/partners/partner-1/earnings-periods", "partner:user-p1",
		`{"periodStart":"2026-03-01T00:00:00Z","periodEnd":"2026-03-02T00:00:00Z","totalImpressions":1000000,"totalEngagements":40000}`)
	if rec.Code != http.StatusForbidden || env.Code != "FORBIDDEN" {
		t.Fatalf("expected partner to be forbidden, got %d %+v", rec.Code, env)
	}

	rec, env = doRequest(t, router, http.MethodPost, "/v1/admin/partners/partner-1/earnings-periods", "admin:admin-1",
		`{"periodStart":"2026-03-01T00:00:00Z","periodEnd":"2026-03-02T00:00:00Z","totalImpressions":1000000,"totalEngagements":40000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var period struct {
		ID     string `json:"id"`
		Amount string `json:"amount"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &period); err != nil {
		t.Fatalf("decode period: %v", err)
	}
	if period.Amount != "300.00" || period.Status != string(domain.EarningsStatusPending) {
		t.Fatalf("unexpected period %+v", period)
	}

	rec, env = doRequest(t, router, http.MethodGet, "/v1/partners/me/earnings?period=all", "partner:user-p1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected summary, got %d %s", rec.Code, rec.Body.String())
	}
	var summary struct {
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.AvailableBalance != "300.00" {
		t.Fatalf("expected available 300.00, got %s", summary.AvailableBalance)
	}

	rec, env = doRequest(t, router, http.MethodPost, "/v1/partners/me/payouts", "partner:user-p1",
		`{"amount":"49.99","paymentMethodId":"pm-1"}`)
	if rec.Code != http.StatusBadRequest || env.Code != "BELOW_THRESHOLD" || env.Details["minimum_threshold"] != "50.00" {
		t.Fatalf("expected below threshold, got %d %+v", rec.Code, env)
	}
	rec, env = doRequest(t, router, http.MethodPost, "/v1/partners/me/payouts", "partner:user-p1",
		`{"amount":"300.01","paymentMethodId":"pm-1"}`)
	if rec.Code != http.StatusBadRequest || env.Code != "INSUFFICIENT_BALANCE" {
		t.Fatalf("expected insufficient balance, got %d %+v", rec.Code, env)
	}

	rec, env = doRequest(t, router, http.MethodPost, "/v1/partners/me/payouts", "partner:user-p1",
		`{"amount":50,"paymentMethodId":"pm-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected payout authorization, got %d %s", rec.Code, rec.Body.String())
	}
	var payout struct {
		ID                 string `json:"id"`
		RequestedAmount    string `json:"requestedAmount"`
		Status             string `json:"status"`
		AuthorizationToken string `json:"authorizationToken"`
	}
	if err := json.Unmarshal(env.Data, &payout); err != nil {
		t.Fatalf("decode payout: %v", err)
	}
	if payout.RequestedAmount != "50.00" || payout.Status != string(domain.PayoutStatusPending) || payout.AuthorizationToken == "" {
		t.Fatalf("unexpected payout %+v", payout)
	}

	rec, _ = doRequest(t, router, http.MethodPost, "/v1/admin/payouts/"+payout.ID+"/approve", "admin:admin-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected approval, got %d %s", rec.Code, rec.Body.String())
	}
	rec, _ = doRequest(t, router, http.MethodPost, "/v1/admin/payouts/"+payout.ID+"/teleport", "admin:admin-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected unknown action to 404, got %d", rec.Code)
	}

	rec, _ = doRequest(t, router, http.MethodPost, "/v1/admin/earnings-periods/"+period.ID+"/process", "admin:admin-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected process, got %d %s", rec.Code, rec.Body.String())
	}
	rec, env = doRequest(t, router, http.MethodPost, "/v1/admin/earnings-periods/"+period.ID+"/paid", "admin:admin-1", `{"transactionId":""}`)
	if rec.Code != http.StatusBadRequest || env.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected blank transaction id rejection, got %d %+v", rec.Code, env)
	}
	rec, _ = doRequest(t, router, http.MethodPost, "/v1/admin/earnings-periods/"+period.ID+"/paid", "admin:admin-1", `{"transactionId":"txn-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected paid, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpointExposesRouteLabels(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	doRequest(t, router, http.MethodGet, "/v1/experiments/exp-404", "advertiser:adv-1", "")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/v1/experiments/{experiment_id}"`) {
		t.Fatalf("expected templated route label in metrics output")
	}
}

func TestMapDomainError(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewValidationError(domain.ReasonNegativeCount, "negative", nil), http.StatusBadRequest, "VALIDATION_ERROR"},
		{&domain.BelowThresholdError{}, http.StatusBadRequest, "BELOW_THRESHOLD"},
		{&domain.InsufficientBalanceError{}, http.StatusBadRequest, "INSUFFICIENT_BALANCE"},
		{fmt.Errorf("wrap: %w", domain.ErrUnauthorized), http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{&domain.InvalidTransitionError{Entity: "experiment", From: "COMPLETED", To: "ACTIVE"}, http.StatusConflict, "INVALID_TRANSITION"},
		{&domain.ConcurrentModificationError{Entity: "payout", ID: "p"}, http.StatusConflict, "CONCURRENT_MODIFICATION"},
		{domain.ErrIdempotencyConflict, http.StatusConflict, "IDEMPOTENCY_CONFLICT"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{domain.ErrRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMITED"},
		{fmt.Errorf("%w: redis", domain.ErrDependencyUnavailable), http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code, _ := mapDomainError(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("%v: expected %d %s, got %d %s", tc.err, tc.status, tc.code, status, code)
		}
	}
}
