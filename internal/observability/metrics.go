package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - счётчики процесса. Снимок пишется в textfile при завершении.
type Metrics struct {
	registry *prometheus.Registry

	StrategyResolutions *prometheus.CounterVec
	Operations          *prometheus.CounterVec
	SearchRounds        prometheus.Counter
	SearchResults       prometheus.Counter
	CommentsPosted      *prometheus.CounterVec
	SessionTransitions  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StrategyResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xhs_strategy_attempts_total",
			Help: "Fallback strategy attempts by chain, strategy and outcome.",
		}, []string{"chain", "strategy", "outcome"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xhs_operations_total",
			Help: "Public operations by name and result code.",
		}, []string{"operation", "code"}),
		SearchRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xhs_search_rounds_total",
			Help: "Executed search rounds.",
		}),
		SearchResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xhs_search_cards_total",
			Help: "Result cards collected across rounds before aggregation.",
		}),
		CommentsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xhs_comment_submits_total",
			Help: "Comment submissions by confirming strategy or failure code.",
		}, []string{"result"}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xhs_session_transitions_total",
			Help: "Session state machine transitions by target state.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(
		m.StrategyResolutions,
		m.Operations,
		m.SearchRounds,
		m.SearchResults,
		m.CommentsPosted,
		m.SessionTransitions,
	)
	return m
}

// ObserveStrategy подходит как resolve.Observer.
func (m *Metrics) ObserveStrategy(chain, strategy string, found bool) {
	outcome := "miss"
	if found {
		outcome = "hit"
	}
	m.StrategyResolutions.WithLabelValues(chain, strategy, outcome).Inc()
}

// Registry нужен тестам и экспорту.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile сохраняет снимок метрик для node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
