package chart

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/signalsfoundry/ndvi-overlay/model"
)

// PageTitle is the HTML title of the interactive chart.
const PageTitle = "NDVI"

// Page writes an interactive line chart of series as a standalone HTML page.
// An empty series yields a page with a subtitle explaining there is no data.
func Page(series model.Series, w io.Writer) error {
	line := charts.NewLine()

	subtitle := ""
	if series.Empty() {
		subtitle = "Por favor, dibuje un polígono para generar la gráfica."
	}
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: PageTitle,
			Width:     "900px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "NDVI", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Fecha"}),
		charts.WithYAxisOpts(opts.YAxis{Name: SeriesName}),
	)

	data := make([]opts.LineData, 0, len(series))
	for _, v := range series.Values() {
		data = append(data, opts.LineData{Value: v})
	}
	line.SetXAxis(series.Labels()).
		AddSeries(SeriesName, data).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(true)}),
		)

	return line.Render(w)
}
