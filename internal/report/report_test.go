package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroedu/hydrosim/internal/engine"
)

func sampleReadings() []engine.Reading {
	return []engine.Reading{
		{Day: 0, Hour: 0, Tick: 0, Stage: "Seedling", Water: 99, EC: 2.3, PH: 7, Temperature: 20, Humidity: 50, Health: 100},
		{Day: 0, Hour: 2, Tick: 1, Stage: "Seedling", Water: 98, EC: 2.3, PH: 7, Temperature: 22, Humidity: 52, Health: 100, ActivePrompt: "water_low"},
		{Day: 0, Hour: 4, Tick: 2, Stage: "Seedling", Water: 97, EC: 2.2, PH: 7, Temperature: 24, Humidity: 54, Health: 99.5, ActivePrompt: "water_low", LightOn: true},
		{Day: 1, Hour: 0, Tick: 12, Stage: "Seedling", Water: 96, EC: 2.2, PH: 7, Temperature: 26, Humidity: 56, Health: 99.5, ActivePrompt: "ec_high"},
	}
}

func TestWriteHistoryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, sampleReadings()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)

	header := rows[0]
	assert.Equal(t, "day", header[0])
	assert.Contains(t, header, "health")
	assert.Contains(t, header, "active_prompt")

	last := rows[4]
	assert.Equal(t, "1", last[0])
	assert.Equal(t, "ec_high", last[len(last)-1])
}

func TestWriteHistoryCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}

func TestHistoryFile_WritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	h, err := NewHistoryFile(dir)
	require.NoError(t, err)

	readings := sampleReadings()
	require.NoError(t, h.Write(readings[:2]...))
	require.NoError(t, h.Write(readings[2:]...))
	require.NoError(t, h.Close())

	data, err := os.ReadFile(filepath.Join(dir, "history.csv"))
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestHistoryFile_DisabledIsNil(t *testing.T) {
	h, err := NewHistoryFile("")
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.NoError(t, h.Write(sampleReadings()...))
	assert.NoError(t, h.Close())
	assert.Equal(t, "", h.Path())
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleReadings())

	assert.Equal(t, 4, s.Ticks)
	assert.Equal(t, 2, s.Days)
	assert.Equal(t, "Seedling", s.FinalStage)
	assert.InDelta(t, 99.5, s.FinalHealth, 1e-9)
	assert.InDelta(t, 99.5, s.LowestHealth, 1e-9)

	// water_low spans two readings and counts once
	assert.Equal(t, 2, s.Prompts)
	assert.Equal(t, 1, s.PromptsByKey["water_low"])
	assert.Equal(t, 1, s.PromptsByKey["ec_high"])
	assert.Equal(t, 1, s.LightOnTicks)

	assert.InDelta(t, 23.0, s.Temperature.Mean, 1e-9)
	assert.InDelta(t, 20.0, s.Temperature.Min, 1e-9)
	assert.InDelta(t, 26.0, s.Temperature.Max, 1e-9)
	assert.InDelta(t, 2.58, s.Temperature.StdDev, 1e-9)
	assert.InDelta(t, 7.0, s.PH.Mean, 1e-9)
	assert.InDelta(t, 0.0, s.PH.StdDev, 1e-9)
}

func TestSummarize_SingleAndEmpty(t *testing.T) {
	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Ticks)
	assert.NotNil(t, empty.PromptsByKey)

	one := Summarize(sampleReadings()[:1])
	assert.Equal(t, 1, one.Ticks)
	assert.Equal(t, 1, one.Days)
	assert.InDelta(t, 0.0, one.Water.StdDev, 1e-9)
	assert.InDelta(t, 99.0, one.Water.Median, 1e-9)
}
