package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records
// nothing, so components can run without an initialized meter.
type Metrics struct {
	JobsProcessed       metric.Int64Counter
	DocumentsDownloaded metric.Int64Counter
	ChunksIndexed       metric.Int64Counter
	AnswerDuration      metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("ai-assist-attorney")

	jobsProcessed, err := meter.Int64Counter(
		"jobs.processed.total",
		metric.WithDescription("Total acquisition jobs processed, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	documentsDownloaded, err := meter.Int64Counter(
		"portal.documents.downloaded",
		metric.WithDescription("Documents downloaded from the judicial portal"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"ingest.chunks.indexed",
		metric.WithDescription("Chunks written to case stores"),
	)
	if err != nil {
		return nil, err
	}

	answerDuration, err := meter.Float64Histogram(
		"rag.answer.duration",
		metric.WithDescription("End-to-end answer generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		JobsProcessed:       jobsProcessed,
		DocumentsDownloaded: documentsDownloaded,
		ChunksIndexed:       chunksIndexed,
		AnswerDuration:      answerDuration,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordJob records the outcome of an acquisition job
func (m *Metrics) RecordJob(outcome string) {
	if m == nil {
		return
	}
	m.JobsProcessed.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("job.outcome", outcome),
	))
}

// RecordDownload records a downloaded portal document
func (m *Metrics) RecordDownload(success bool) {
	if m == nil {
		return
	}
	m.DocumentsDownloaded.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Bool("download.success", success),
	))
}

// RecordChunks records chunks indexed into a case store
func (m *Metrics) RecordChunks(count int64) {
	if m == nil {
		return
	}
	m.ChunksIndexed.Add(context.Background(), count)
}

// RecordAnswer records answer generation duration
func (m *Metrics) RecordAnswer(duration float64, outcome string) {
	if m == nil {
		return
	}
	m.AnswerDuration.Record(context.Background(), duration, metric.WithAttributes(
		attribute.String("answer.outcome", outcome),
	))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}
