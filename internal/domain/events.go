package domain

const (
	EventExperimentCreated        = "experiment.created"
	EventExperimentStatusChanged  = "experiment.status_changed"
	EventExperimentCompleted      = "experiment.completed"
	EventEarningsPeriodRecorded   = "earnings.period_recorded"
	EventEarningsPeriodTransition = "earnings.period_status_changed"
	EventPayoutRequested          = "payout.requested"
	EventPayoutStatusChanged      = "payout.status_changed"

	// Consumed from the ad-delivery service.
	EventDeliveryVariantMetrics = "delivery.variant_metrics"
)

const CanonicalEventClassDomain = "domain"
