// Package metrics records adapter activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/howard-nolan/workersai/internal/provider"
)

// Call kinds used for the "kind" label.
const (
	KindGenerate = "generate"
	KindStream   = "stream"
	KindEmbed    = "embed"
	KindImage    = "image"
)

// Recorder owns the adapter's collectors. A nil *Recorder is valid and
// records nothing, so models can be built without metrics.
type Recorder struct {
	calls    *prometheus.CounterVec
	tokens   *prometheus.CounterVec
	warnings *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg.
// It panics if a collector with the same name is already registered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workersai_calls_total",
			Help: "Backend invocations by model, call kind and outcome.",
		}, []string{"model", "kind", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workersai_tokens_total",
			Help: "Tokens reported by the backend, split by direction.",
		}, []string{"model", "direction"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workersai_warnings_total",
			Help: "Unsupported settings reported back to callers.",
		}, []string{"setting"}),
	}
	reg.MustRegister(r.calls, r.tokens, r.warnings)
	return r
}

// ObserveCall counts one invocation. A nil err is recorded as "ok".
func (r *Recorder) ObserveCall(model, kind string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.calls.WithLabelValues(model, kind, outcome).Inc()
}

// ObserveUsage adds the token counts of one call.
func (r *Recorder) ObserveUsage(model string, u provider.Usage) {
	if r == nil {
		return
	}
	r.tokens.WithLabelValues(model, "prompt").Add(float64(u.PromptTokens))
	r.tokens.WithLabelValues(model, "completion").Add(float64(u.CompletionTokens))
}

// ObserveWarnings counts each warning by setting name.
func (r *Recorder) ObserveWarnings(warnings []provider.Warning) {
	if r == nil {
		return
	}
	for _, w := range warnings {
		r.warnings.WithLabelValues(w.Setting).Inc()
	}
}
