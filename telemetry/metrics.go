package telemetry

// ClaimBuckets covers lock-bounded claim round trips against the coordinator.
var ClaimBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Claim & consume metrics
var (
	// ClaimsTotal counts atomic interval claims per indexer
	ClaimsTotal CounterVec = noopCounterVec{}

	// ClaimDurationSeconds measures the locked claim section per indexer
	ClaimDurationSeconds HistogramVec = noopHistogramVec{}

	// ConsumeTotal counts consume outcomes per indexer
	// (success, failed, dropped, rejected, latest)
	ConsumeTotal CounterVec = noopCounterVec{}

	// LiveTasks tracks currently occupied task slots per indexer
	LiveTasks GaugeVec = noopGaugeVec{}
)

// Retry & recovery metrics
var (
	// RetriesTotal counts starts pushed to the retry queue by source
	// (failure, zombie)
	RetriesTotal CounterVec = noopCounterVec{}

	// ZombiesTotal counts live-list entries reaped after shadow expiry
	ZombiesTotal CounterVec = noopCounterVec{}

	// RollbacksTotal counts rollbacks per indexer
	RollbacksTotal CounterVec = noopCounterVec{}

	// EpochMismatchesTotal counts callback failures dropped because a
	// rollback invalidated their epoch
	EpochMismatchesTotal CounterVec = noopCounterVec{}
)

// InitMetrics initializes all Prometheus metrics. Called by
// InitializeTelemetry after the registry exists.
func InitMetrics() {
	ClaimsTotal = NewCounterVec(
		"claims_total",
		"Atomic interval claims",
		[]string{"indexer"})

	ClaimDurationSeconds = NewHistogramVec(
		"claim_duration_seconds",
		"Duration of the locked claim section",
		ClaimBuckets,
		[]string{"indexer"})

	ConsumeTotal = NewCounterVec(
		"consume_total",
		"Consume invocations by outcome",
		[]string{"indexer", "result"})

	LiveTasks = NewGaugeVec(
		"live_tasks",
		"Currently occupied task slots",
		[]string{"indexer"})

	RetriesTotal = NewCounterVec(
		"retries_total",
		"Starts enqueued for retry by source",
		[]string{"indexer", "source"})

	ZombiesTotal = NewCounterVec(
		"zombies_total",
		"Live-list entries reaped after shadow expiry",
		[]string{"indexer"})

	RollbacksTotal = NewCounterVec(
		"rollbacks_total",
		"Cursor rollbacks",
		[]string{"indexer"})

	EpochMismatchesTotal = NewCounterVec(
		"epoch_mismatches_total",
		"Callback failures dropped due to a rollback",
		[]string{"indexer"})
}
