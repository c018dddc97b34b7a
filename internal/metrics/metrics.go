package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	storiesCreated  prometheus.Counter
	scenesCreated   prometheus.Counter
	engagement      *prometheus.CounterVec
	readingSteps    *prometheus.CounterVec
	integrityErrors prometheus.Counter
	httpRequests    *prometheus.CounterVec
}

// New registers the counters on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		storiesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "woventales_stories_created_total",
			Help: "Total number of stories created.",
		}),
		scenesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "woventales_scenes_created_total",
			Help: "Total number of scenes created.",
		}),
		engagement: f.NewCounterVec(prometheus.CounterOpts{
			Name: "woventales_engagement_actions_total",
			Help: "Total number of engagement actions by type.",
		}, []string{"action"}),
		readingSteps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "woventales_reading_steps_total",
			Help: "Total number of reading session steps by operation and outcome.",
		}, []string{"op", "outcome"}),
		integrityErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "woventales_data_integrity_errors_total",
			Help: "Total number of broken scene graph references encountered.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "woventales_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) StoryCreated() {
	if m != nil {
		m.storiesCreated.Inc()
	}
}

func (m *Metrics) SceneCreated() {
	if m != nil {
		m.scenesCreated.Inc()
	}
}

// Engagement counts an action such as "story_like", "rate" or "comment"
func (m *Metrics) Engagement(action string) {
	if m != nil {
		m.engagement.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) ReadingStep(op, outcome string) {
	if m != nil {
		m.readingSteps.WithLabelValues(op, outcome).Inc()
	}
}

func (m *Metrics) DataIntegrityError() {
	if m != nil {
		m.integrityErrors.Inc()
	}
}

func (m *Metrics) HTTPRequest(method, route, status string) {
	if m != nil {
		m.httpRequests.WithLabelValues(method, route, status).Inc()
	}
}
