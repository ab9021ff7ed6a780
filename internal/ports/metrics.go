package ports

import "time"

type Metrics interface {
	ObserveExperimentTransition(from, to, outcome string)
	ObservePayoutDecision(outcome string)
	ObserveEarningsRecorded(status string, amount float64)
	ObserveEventConsumed(eventType, outcome string)
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
}
