// Package telemetry wires Prometheus metrics and OpenTelemetry tracing for
// the pipeline. The Provider implements the stats recorder contracts of the
// extractor, resolver, and grading packages so those stay import-free of
// metrics libraries.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Provider holds the service's metrics and tracer.
type Provider struct {
	registry *prometheus.Registry
	tracer   trace.Tracer

	mentionsExtracted *prometheus.CounterVec
	mentionsDiscarded *prometheus.CounterVec
	recognizerFallbks prometheus.Counter

	broadcastersRegistered prometheus.Counter
	aliasesLearned         prometheus.Counter
	auditFlags             prometheus.Counter
	dealUpserts            *prometheus.CounterVec

	snapshots       *prometheus.CounterVec
	gradingDuration prometheus.Histogram

	httpRequests *prometheus.CounterVec
}

// New creates a Provider with all collectors registered.
func New(serviceName string) *Provider {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &Provider{
		registry: registry,
		tracer:   otel.Tracer(serviceName),

		mentionsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bars_mentions_extracted_total",
			Help: "Deal mentions extracted from articles, by deal type.",
		}, []string{"deal_type"}),
		mentionsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bars_mentions_discarded_total",
			Help: "Candidate mentions discarded during extraction, by reason.",
		}, []string{"reason"}),
		recognizerFallbks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bars_recognizer_fallbacks_total",
			Help: "Extractions that fell back to lexicon-only tagging.",
		}),

		broadcastersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bars_broadcasters_registered_total",
			Help: "New broadcasters added to the registry.",
		}),
		aliasesLearned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bars_aliases_learned_total",
			Help: "New aliases attached to existing broadcasters.",
		}),
		auditFlags: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bars_audit_flags_total",
			Help: "Deal records flagged for manual review.",
		}),
		dealUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bars_deal_upserts_total",
			Help: "Deal record upserts, by outcome.",
		}, []string{"result"}),

		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bars_score_snapshots_total",
			Help: "Score snapshots computed, by grade.",
		}, []string{"grade"}),
		gradingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bars_grading_duration_seconds",
			Help:    "Time spent grading one broadcaster.",
			Buckets: prometheus.DefBuckets,
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bars_http_requests_total",
			Help: "HTTP requests served, by method, path, and status.",
		}, []string{"method", "path", "status"}),
	}

	registry.MustRegister(
		p.mentionsExtracted,
		p.mentionsDiscarded,
		p.recognizerFallbks,
		p.broadcastersRegistered,
		p.aliasesLearned,
		p.auditFlags,
		p.dealUpserts,
		p.snapshots,
		p.gradingDuration,
		p.httpRequests,
	)
	return p
}

// StartSpan starts a trace span. The caller is responsible for ending it.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// MetricsHandler serves the /metrics endpoint.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// MentionExtracted implements extractor.StatsRecorder.
func (p *Provider) MentionExtracted(dealType string) {
	p.mentionsExtracted.WithLabelValues(dealType).Inc()
}

// MentionDiscarded implements extractor.StatsRecorder.
func (p *Provider) MentionDiscarded(reason string) {
	p.mentionsDiscarded.WithLabelValues(reason).Inc()
}

// RecognizerFallback implements extractor.StatsRecorder.
func (p *Provider) RecognizerFallback() {
	p.recognizerFallbks.Inc()
}

// BroadcasterRegistered implements resolver.StatsRecorder.
func (p *Provider) BroadcasterRegistered() {
	p.broadcastersRegistered.Inc()
}

// AliasLearned implements resolver.StatsRecorder.
func (p *Provider) AliasLearned() {
	p.aliasesLearned.Inc()
}

// AuditFlagged implements resolver.StatsRecorder.
func (p *Provider) AuditFlagged() {
	p.auditFlags.Inc()
}

// DealUpserted implements resolver.StatsRecorder.
func (p *Provider) DealUpserted(result string) {
	p.dealUpserts.WithLabelValues(result).Inc()
}

// SnapshotComputed implements grading.StatsRecorder.
func (p *Provider) SnapshotComputed(grade string, took time.Duration) {
	p.snapshots.WithLabelValues(grade).Inc()
	p.gradingDuration.Observe(took.Seconds())
}

// HTTPRequest counts one served request.
func (p *Provider) HTTPRequest(method, path, status string) {
	p.httpRequests.WithLabelValues(method, path, status).Inc()
}
