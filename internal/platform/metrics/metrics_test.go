package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.RecordTick(2*time.Millisecond, nil)
	c.RecordTick(4*time.Millisecond, errors.New("boom"))
	c.RecordPromptRaised()
	c.RecordPromptMissed(1.0)
	c.RecordPromptMissed(0.5)

	snap := c.Snapshot()
	tick := snap["tick"].(map[string]interface{})
	if tick["count"].(int64) != 2 {
		t.Errorf("expected 2 ticks, got %v", tick["count"])
	}
	if tick["errors"].(int64) != 1 {
		t.Errorf("expected 1 tick error, got %v", tick["errors"])
	}
	if tick["max_latency_ms"].(float64) != 4 {
		t.Errorf("expected max latency 4ms, got %v", tick["max_latency_ms"])
	}

	prompts := snap["prompts"].(map[string]interface{})
	if prompts["missed"].(int64) != 2 || prompts["penalty_total"].(float64) != 1.5 {
		t.Errorf("unexpected prompt metrics %v", prompts)
	}
}

func TestPrometheusHandler(t *testing.T) {
	c := New()
	c.RecordPromptRaised()
	c.RecordWSMessage(true)

	rec := httptest.NewRecorder()
	c.PrometheusHandler()(rec, httptest.NewRequest("GET", "/metrics/prometheus", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `hydro_prompts_total{outcome="raised"} 1`) {
		t.Errorf("missing raised prompt counter:\n%s", body)
	}
	if !strings.Contains(body, `hydro_ws_messages_total{direction="in"} 1`) {
		t.Errorf("missing ws counter:\n%s", body)
	}
}
