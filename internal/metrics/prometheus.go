package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ImagesAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodrone_images_analyzed_total",
			Help: "Uploaded images by analysis outcome",
		},
		[]string{"status"},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agrodrone_analysis_duration_seconds",
			Help:    "Batch analysis duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agrodrone_sessions_created_total",
			Help: "Total analysis sessions created",
		},
	)

	CanopyCover = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agrodrone_session_canopy_cover_percent",
			Help:    "Session mean canopy cover",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	ChatReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodrone_chat_replies_total",
			Help: "Chat replies by dispatch path",
		},
		[]string{"path"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agrodrone_generation_duration_seconds",
			Help:    "Generative model call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"outcome"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodrone_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"type"},
	)

	ModelLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodrone_model_loads_total",
			Help: "Model provider builds by outcome",
		},
		[]string{"status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodrone_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodrone_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrodrone_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"limiter"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ImagesAnalyzed)
		prometheus.MustRegister(AnalysisDuration)
		prometheus.MustRegister(SessionsCreated)
		prometheus.MustRegister(CanopyCover)
		prometheus.MustRegister(ChatReplies)
		prometheus.MustRegister(GenerationDuration)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(ModelLoads)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(RateLimited)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
