package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "travel_rag_question_duration_seconds",
			Help:    "Answer pipeline duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	QuestionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_rag_question_total",
			Help: "Total questions processed by outcome status",
		},
		[]string{"status"},
	)

	ShortCircuitTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "travel_rag_short_circuit_total",
			Help: "Questions answered with the fallback without invoking the LLM",
		},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "travel_rag_retrieval_results_count",
			Help:    "Number of records returned per retrieval",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_rag_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_rag_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_rag_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	AttractionsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "travel_rag_attractions_ingested_total",
			Help: "Total attractions ingested into the vector index",
		},
	)

	WikipediaFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_rag_wikipedia_fetches_total",
			Help: "Wikipedia description fetches by outcome",
		},
		[]string{"outcome"},
	)
)

func Init() {
	prometheus.MustRegister(QuestionDuration)
	prometheus.MustRegister(QuestionTotal)
	prometheus.MustRegister(ShortCircuitTotal)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(AttractionsIngested)
	prometheus.MustRegister(WikipediaFetches)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
