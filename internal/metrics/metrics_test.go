package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.StoryCreated()
	m.SceneCreated()
	m.SceneCreated()
	m.Engagement("rate")
	m.Engagement("story_like")
	m.ReadingStep("choose", "ok")

	assert.Equal(t, 1.0, counterValue(t, reg, "woventales_stories_created_total"))
	assert.Equal(t, 2.0, counterValue(t, reg, "woventales_scenes_created_total"))
	assert.Equal(t, 2.0, counterValue(t, reg, "woventales_engagement_actions_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "woventales_reading_steps_total"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StoryCreated()
		m.Engagement("comment")
		m.HTTPRequest("GET", "/health", "200")
	})
}
