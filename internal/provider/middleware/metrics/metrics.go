// Package metrics provides Prometheus-backed instrumentation for provider calls.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/infer-no-dev/devkit/internal/provider"
)

// Recorder observes one completed provider call.
type Recorder interface {
	ObserveChat(providerName, model string, promptTokens, completionTokens int, success bool, duration time.Duration)
}

// PrometheusRecorder implements Recorder with a small set of counters/histograms,
// registered into the given prometheus.Registerer.
type PrometheusRecorder struct {
	requestsTotal *prometheus.CounterVec
	tokensTotal *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder builds and registers the metrics into reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devkit_provider_requests_total",
			Help: "Total number of provider chat requests by provider, model, and status.",
			}, []string{"provider", "model", "status"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devkit_provider_tokens_total",
			Help: "Total number of tokens used in provider requests.",
			}, []string{"provider", "model", "type"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "devkit_provider_request_duration_seconds",
			Help: "Duration of provider chat requests in seconds.",
			Buckets: prometheus.DefBuckets,
			}, []string{"provider", "model"}),
	}
	reg.MustRegister(r.requestsTotal, r.tokensTotal, r.requestDuration)
	return r
}

// ObserveChat implements Recorder.
func (p *PrometheusRecorder) ObserveChat(providerName, model string, promptTokens, completionTokens int, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(providerName, model, status).Inc()
	if success {
		p.tokensTotal.WithLabelValues(providerName, model, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(providerName, model, "completion").Add(float64(completionTokens))
	}
	p.requestDuration.WithLabelValues(providerName, model).Observe(duration.Seconds())
}

// NopRecorder discards observations; used when metrics are disabled.
type NopRecorder struct{}

// ObserveChat implements Recorder.
func (NopRecorder) ObserveChat(string, string, int, int, bool, time.Duration) {}

type client struct {
	provider.Client
	recorder Recorder
}

// Middleware wraps next, recording every Chat call through recorder.
func Middleware(recorder Recorder) provider.Middleware {
	return func(next provider.Client) provider.Client {
		return &client{Client: next, recorder: recorder}
	}
}

func (c *client) Chat(ctx context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	start := time.Now()
	resp, err := c.Client.Chat(ctx, req)
	c.recorder.ObserveChat(c.Client.Name(), req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, err == nil, time.Since(start))
	return resp, err
}
