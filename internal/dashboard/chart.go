package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
)

const (
	chartWidth   = "100%"
	chartHeight  = "480px"
	chartStack   = "sizes"
	areaOpacity  = 0.6
	styleTagLen  = len("</style>")
	containerDiv = `<div class="container">`
)

// chartSeries is one artifact's sizes across the loaded builds.
type chartSeries struct {
	name  string
	color string
	sizes []int64
}

func (s State) chartSeries() []chartSeries {
	series := make([]chartSeries, 0, len(s.ActiveArtifactNames))

	for _, name := range s.FilteredArtifactNames {
		if !containsString(s.ActiveArtifactNames, name) {
			continue
		}

		sizes := make([]int64, len(s.Builds))
		for i, b := range s.Builds {
			sizes[i] = b.Size(name, s.SizeKey)
		}

		series = append(series, chartSeries{name: name, color: s.ColorFor(name), sizes: sizes})
	}

	return series
}

func (s State) chartLabels() []string {
	labels := make([]string, len(s.Builds))
	for i, b := range s.Builds {
		labels[i] = build.ShortRevision(b.Revision())
	}

	return labels
}

func (s State) yAxis() opts.YAxis {
	axis := opts.YAxis{Name: s.SizeKey + " bytes", Type: "value"}
	if s.YScale == YScaleLog {
		axis.Type = "log"
	}

	return axis
}

func (s State) globalOptions() []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		charts.WithYAxisOpts(s.yAxis()),
	}
}

func (s State) barChart() *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(s.globalOptions()...)
	bar.SetXAxis(s.chartLabels())

	for _, series := range s.chartSeries() {
		data := make([]opts.BarData, len(series.sizes))
		for i, size := range series.sizes {
			data[i] = opts.BarData{Value: size}
		}

		bar.AddSeries(series.name, data,
			charts.WithBarChartOpts(opts.BarChart{Stack: chartStack}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: series.color}),
		)
	}

	return bar
}

func (s State) areaChart() *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(s.globalOptions()...)
	line.SetXAxis(s.chartLabels())

	for _, series := range s.chartSeries() {
		data := make([]opts.LineData, len(series.sizes))
		for i, size := range series.sizes {
			data[i] = opts.LineData{Value: size}
		}

		line.AddSeries(series.name, data,
			charts.WithLineChartOpts(opts.LineChart{Stack: chartStack}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: series.color}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: series.color}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(areaOpacity)}),
		)
	}

	return line
}

// ChartHTML renders the size chart as an HTML fragment: bars for a few
// builds, stacked areas otherwise. It is empty when nothing is loaded.
func (s State) ChartHTML() (template.HTML, error) {
	if len(s.Builds) == 0 {
		return "", nil
	}

	var buf bytes.Buffer

	var err error
	if s.Chart == ChartBar {
		err = s.barChart().Render(&buf)
	} else {
		err = s.areaChart().Render(&buf)
	}

	if err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}

	//nolint:gosec // go-echarts output with artifact names escaped by the library.
	return template.HTML(extractChartContent(buf.String())), nil
}

// extractChartContent keeps the chart container and its script from a full
// go-echarts page, dropping the page shell and inline styles.
func extractChartContent(html string) string {
	start := strings.Index(html, containerDiv)
	if start == -1 {
		return html
	}

	end := strings.Index(html, "</body>")
	if end == -1 || end < start {
		return html
	}

	content := html[start:end]
	content = strings.ReplaceAll(content, `class="container"`, `class="echart-box"`)

	for {
		i := strings.Index(content, "<style>")
		if i == -1 {
			break
		}

		j := strings.Index(content[i:], "</style>")
		if j == -1 {
			break
		}

		content = content[:i] + content[i+j+styleTagLen:]
	}

	return content
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}

	return false
}
