package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelsAndEventsShareWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Info("engine started")
	l.Warn("tick slow")
	l.Error("snapshot failed")
	l.Event("PROMPT_RAISED", "sess-1", "water_low")

	out := buf.String()
	assert.Contains(t, out, "[HYDRO-INFO] ")
	assert.Contains(t, out, "[HYDRO-WARN] ")
	assert.Contains(t, out, "[HYDRO-ERROR] ")
	assert.Contains(t, out, "snapshot failed")
	assert.Contains(t, out, "[EVENT:PROMPT_RAISED] Actor:sess-1 | water_low")
}

func TestDiscardDropsEverything(t *testing.T) {
	l := Discard()
	assert.NotPanics(t, func() {
		l.Info("x")
		l.Event("A", "b", "c")
	})
}
