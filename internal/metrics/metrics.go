package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

var _ service.Observer = (*Metrics)(nil)

// Metrics counts question loads, answer saves and logins.
type Metrics struct {
	registry  *prometheus.Registry
	loads     *prometheus.CounterVec
	questions prometheus.Gauge
	saves     *prometheus.CounterVec
	logins    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetquiz",
			Name:      "question_loads_total",
			Help:      "Question loads from the tabular store by outcome.",
		}, []string{"outcome"}),
		questions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sheetquiz",
			Name:      "last_load_questions",
			Help:      "Number of questions returned by the last successful load.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetquiz",
			Name:      "response_saves_total",
			Help:      "Answer saves by persistence tier and outcome.",
		}, []string{"tier", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetquiz",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.loads, m.questions, m.saves, m.logins)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) QuestionsLoaded(count int, err error) {
	m.loads.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.questions.Set(float64(count))
	}
}

func (m *Metrics) ResponseSaved(tier service.Tier, err error) {
	m.saves.WithLabelValues(string(tier), outcome(err)).Inc()
}

func (m *Metrics) LoginFinished(err error) {
	var (
		decodeErr *service.DecodeError
		deniedErr *service.AccessDeniedError
	)
	switch {
	case err == nil:
		m.logins.WithLabelValues("ok").Inc()
	case errors.As(err, &deniedErr):
		m.logins.WithLabelValues("denied").Inc()
	case errors.As(err, &decodeErr):
		m.logins.WithLabelValues("invalid_token").Inc()
	case errors.Is(err, service.ErrUnverifiedToken):
		m.logins.WithLabelValues("unverified").Inc()
	default:
		m.logins.WithLabelValues("error").Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
