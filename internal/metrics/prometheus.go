package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"cached"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_query_total",
			Help: "Total number of questions processed",
		},
		[]string{"status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_confidence_score",
			Help:    "Answer confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_cache_hits_total",
			Help: "Total response cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_cache_misses_total",
			Help: "Total response cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docqa_documents_processed_total",
			Help: "Total documents ingested",
		},
	)

	ChunksStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docqa_chunks_stored_total",
			Help: "Total chunks embedded and stored",
		},
	)

	DegradedEmbeddings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docqa_degraded_embeddings_total",
			Help: "Ingestion runs that fell back to the hash embedder",
		},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_feedback_total",
			Help: "Total feedback submissions",
		},
		[]string{"type"},
	)

	SatisfactionRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docqa_satisfaction_rate",
			Help: "Current satisfaction rate percentage",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(ChunksStored)
	prometheus.MustRegister(DegradedEmbeddings)
	prometheus.MustRegister(FeedbackTotal)
	prometheus.MustRegister(SatisfactionRate)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
