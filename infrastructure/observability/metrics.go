package observability

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"wagerbook/config"
	"wagerbook/domain/entities"
	"wagerbook/domain/events"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the ledger service
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	wagersSubmittedCounter       metric.Int64Counter
	wagersRejectedCounter        metric.Int64Counter
	wagerFillsCounter            metric.Int64Counter
	wagerFilledAmountCounter     metric.Int64Counter
	settlementsCounter           metric.Int64Counter
	balanceTransactionsCounter   metric.Int64Counter
	storeConflictsCounter        metric.Int64Counter
	atomicUpdatesCounter         metric.Int64Counter
	atomicUpdateDurationHist     metric.Float64Histogram
	natsMessagesReceivedCounter  metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Println("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Println("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Println("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.Printf("Using OTLP metric exporter: %s", mp.config.OTelOTLPEndpoint)

	case "none":
		log.Println("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)
	otel.SetMeterProvider(mp.meterProvider)

	if err := mp.useMeter(mp.meterProvider.Meter("wagerbook")); err != nil {
		return err
	}

	mp.initialized = true
	log.Println("Metrics provider initialized successfully")
	return nil
}

// useMeter creates every instrument on meter and enables recording
func (mp *MetricsProvider) useMeter(meter metric.Meter) error {
	mp.meter = meter
	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}
	mp.enabled = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.wagersSubmittedCounter, WagersSubmittedTotal, "Total number of accepted wagers"},
		{&mp.wagersRejectedCounter, WagersRejectedTotal, "Total number of rejected wager submissions"},
		{&mp.wagerFillsCounter, WagerFillsTotal, "Total number of fills between opposing wagers"},
		{&mp.wagerFilledAmountCounter, WagerFilledAmount, "Total stake matched by fills"},
		{&mp.settlementsCounter, SettlementsTotal, "Total number of settled wagers"},
		{&mp.balanceTransactionsCounter, BalanceTransactionsTotal, "Total number of ledger entries"},
		{&mp.storeConflictsCounter, StoreConflictsTotal, "Total number of store conflicts seen by atomic updates"},
		{&mp.atomicUpdatesCounter, AtomicUpdatesTotal, "Total number of atomic updates"},
		{&mp.natsMessagesReceivedCounter, NATSMessagesReceivedTotal, "Total number of NATS messages received"},
		{&mp.natsMessagesPublishedCounter, NATSMessagesPublishedTotal, "Total number of NATS messages published"},
	}
	for _, c := range counters {
		*c.target, err = mp.meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	mp.atomicUpdateDurationHist, err = mp.meter.Float64Histogram(
		AtomicUpdateDuration,
		metric.WithDescription("Duration of atomic updates including retries, in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create atomic update duration histogram: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// ObserveAtomic records the outcome of one atomic update. Every attempt before
// the last was a conflict, and so was the last one when retries ran out.
func (mp *MetricsProvider) ObserveAtomic(ctx context.Context, op string, attempts int, duration time.Duration, err error) {
	if !mp.isEnabled() {
		return
	}

	result := ResultCommitted
	conflicts := attempts - 1
	switch {
	case errors.Is(err, entities.ErrTransactionFailed):
		result = ResultExhausted
		conflicts = attempts
	case err != nil:
		result = ResultRejected
	}

	opAttr := attribute.String(LabelOperation, op)
	mp.atomicUpdatesCounter.Add(ctx, 1, metric.WithAttributes(opAttr, attribute.String(LabelResult, result)))
	mp.atomicUpdateDurationHist.Record(ctx, duration.Seconds(), metric.WithAttributes(opAttr))
	if conflicts > 0 {
		mp.storeConflictsCounter.Add(ctx, int64(conflicts), metric.WithAttributes(opAttr))
	}

	if op == "submit_wager" && err != nil {
		mp.wagersRejectedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelErrorType, ErrorType(err))))
	}
}

// HandleEvent records ledger activity from committed domain events
func (mp *MetricsProvider) HandleEvent(ctx context.Context, event events.Event) error {
	if !mp.isEnabled() {
		return nil
	}

	switch e := event.(type) {
	case events.WagerPlacedEvent:
		mp.wagersSubmittedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelCurrency, string(e.Currency))))
	case events.WagerMatchedEvent:
		mp.wagerFillsCounter.Add(ctx, 1)
		mp.wagerFilledAmountCounter.Add(ctx, e.Amount)
	case events.WagerSettledEvent:
		mp.settlementsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelOutcome, string(e.Status)),
			attribute.String(LabelCurrency, string(e.Currency)),
		))
	case events.BalanceChangeEvent:
		mp.balanceTransactionsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelType, string(e.TransactionKind)),
			attribute.String(LabelCurrency, string(e.Currency)),
		))
	}
	return nil
}

// RecordNATSMessageReceived records a NATS message being received
func (mp *MetricsProvider) RecordNATSMessageReceived(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesReceivedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// isEnabled checks if metrics are initialized with a live meter
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.enabled
}

// ErrorType names the ledger error class of err for metric labels
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, entities.ErrTransactionFailed):
		return "transaction_failed"
	case errors.Is(err, entities.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, entities.ErrDailyLimitExceeded):
		return "daily_limit_exceeded"
	case errors.Is(err, entities.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, entities.ErrInvalidCurrency):
		return "invalid_currency"
	case errors.Is(err, entities.ErrMarketLocked):
		return "market_locked"
	case errors.Is(err, entities.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
