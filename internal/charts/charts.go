// Package charts renders the monitoring charts as standalone echarts pages.
package charts

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"asetmon/internal/core"
)

const (
	// AssetsHost serves the echarts scripts referenced by rendered pages.
	AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

	ConditionTitle = "Nilai Aset per Kondisi"
	TypeTitle      = "Komposisi Nilai per Jenis Aset"

	emptyLabel = "(kosong)"
)

func label(s string) string {
	if s == "" {
		return emptyLabel
	}
	return s
}

func initOpts(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle:  title,
		Width:      "100%",
		Height:     "420px",
		AssetsHost: AssetsHost,
	})
}

// ConditionByType builds a bar chart of value per condition, stacked by
// asset type.
func ConditionByType(s core.Summary, subtitle string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(ConditionTitle),
		charts.WithTitleOpts(opts.Title{Title: ConditionTitle, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)

	conditions := make([]string, 0, len(s.Conditions))
	for _, c := range s.Conditions {
		conditions = append(conditions, label(c.Condition))
	}
	bar.SetXAxis(conditions)

	for _, typ := range s.TypeNames {
		data := make([]opts.BarData, 0, len(s.Conditions))
		for _, c := range s.Conditions {
			data = append(data, opts.BarData{Value: c.ByType[typ]})
		}
		bar.AddSeries(label(typ), data, charts.WithBarChartOpts(opts.BarChart{Stack: "nilai"}))
	}
	return bar
}

// TypeShare builds a pie chart of each type's share of the total value.
func TypeShare(s core.Summary, subtitle string) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		initOpts(TypeTitle),
		charts.WithTitleOpts(opts.Title{Title: TypeTitle, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)

	data := make([]opts.PieData, 0, len(s.ByType))
	for _, v := range s.ByType {
		data = append(data, opts.PieData{Name: label(v.Name), Value: v.Value})
	}
	pie.AddSeries("Nilai", data).SetSeriesOptions(
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}),
	)
	return pie
}

// RenderConditionByType writes the condition chart page to w.
func RenderConditionByType(w io.Writer, s core.Summary, subtitle string) error {
	return ConditionByType(s, subtitle).Render(w)
}

// RenderTypeShare writes the type share chart page to w.
func RenderTypeShare(w io.Writer, s core.Summary, subtitle string) error {
	return TypeShare(s, subtitle).Render(w)
}
