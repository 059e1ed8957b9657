package observability

// Metric name prefixes
const (
	MetricPrefix = "wagerbook"
)

// Metric names
const (
	// Wager metrics
	WagersSubmittedTotal = MetricPrefix + ".wagers.submitted_total"
	WagersRejectedTotal  = MetricPrefix + ".wagers.rejected_total"
	WagerFillsTotal      = MetricPrefix + ".wagers.fills_total"
	WagerFilledAmount    = MetricPrefix + ".wagers.filled_amount"
	SettlementsTotal     = MetricPrefix + ".settlements.total"

	// Ledger metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"

	// Unit of work metrics
	StoreConflictsTotal  = MetricPrefix + ".store.conflicts_total"
	AtomicUpdatesTotal   = MetricPrefix + ".store.atomic_updates_total"
	AtomicUpdateDuration = MetricPrefix + ".store.atomic_update_duration"

	// NATS metrics
	NATSMessagesReceivedTotal  = MetricPrefix + ".nats.messages_received_total"
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelCurrency  = "currency"
	LabelOutcome   = "outcome"
	LabelOperation = "operation"
	LabelResult    = "result"
	LabelErrorType = "error_type"
)

// Atomic update results
const (
	ResultCommitted = "committed"
	ResultRejected  = "rejected"
	ResultExhausted = "exhausted"
)
