package charts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"asetmon/internal/core"
)

func summary() core.Summary {
	return core.Summarize([]core.Asset{
		{Name: "Gedung", Type: "Bangunan", Condition: "Baik", Value: 100},
		{Name: "Lahan", Type: "Tanah", Condition: "", Value: 300},
		{Name: "Pos", Type: "Bangunan", Condition: "Rusak Berat", Value: 50},
	})
}

func TestRenderConditionByType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderConditionByType(&buf, summary(), "Semua KPH"))

	out := buf.String()
	require.Contains(t, out, ConditionTitle)
	require.Contains(t, out, "Rusak Berat")
	require.Contains(t, out, emptyLabel)
	require.Contains(t, out, "Bangunan")
}

func TestRenderTypeShare(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTypeShare(&buf, summary(), "Semua KPH"))

	out := buf.String()
	require.Contains(t, out, TypeTitle)
	require.Contains(t, out, "Tanah")
}

func TestChartsWithEmptySummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderConditionByType(&buf, core.Summarize(nil), ""))
	buf.Reset()
	require.NoError(t, RenderTypeShare(&buf, core.Summarize(nil), ""))
}

func TestLabel(t *testing.T) {
	require.Equal(t, emptyLabel, label(""))
	require.Equal(t, "Baik", label("Baik"))
}
