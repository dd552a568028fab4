// Package chart renders a run's monthly series as PNG line charts.
package chart

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/nvandessel/rabbitsim/internal/simulation"
)

// ErrTooFewPoints is returned for series shorter than two months.
var ErrTooFewPoints = errors.New("at least two months are needed to draw a chart")

// Size of the rendered image in pixels.
const (
	Width  = 1200
	Height = 600
)

var (
	colorAlive   = drawing.Color{R: 40, G: 40, B: 40, A: 255}
	colorFemales = chart.ColorRed
	colorMales   = chart.ColorBlue
	colorBirths  = chart.ColorGreen
	colorDeaths  = drawing.Color{R: 255, G: 165, B: 0, A: 255}
)

type line struct {
	name   string
	color  drawing.Color
	width  float64
	values func(m simulation.MonthStats) int
}

// PopulationPNG draws alive, female and male counts per month.
func PopulationPNG(w io.Writer, title string, series []simulation.MonthStats) error {
	return render(w, title, "Population", series, []line{
		{"Total alive", colorAlive, 3, func(m simulation.MonthStats) int { return m.Alive }},
		{"Females", colorFemales, 2, func(m simulation.MonthStats) int { return m.Females }},
		{"Males", colorMales, 2, func(m simulation.MonthStats) int { return m.Males }},
	})
}

// BirthsDeathsPNG draws monthly births against monthly deaths.
func BirthsDeathsPNG(w io.Writer, title string, series []simulation.MonthStats) error {
	return render(w, title, "Rabbits per month", series, []line{
		{"Births", colorBirths, 2, func(m simulation.MonthStats) int { return m.Births }},
		{"Deaths", colorDeaths, 2, func(m simulation.MonthStats) int { return m.Deaths }},
	})
}

func render(w io.Writer, title, yName string, series []simulation.MonthStats, lines []line) error {
	if len(series) < 2 {
		return ErrTooFewPoints
	}

	months := make([]float64, len(series))
	for i, m := range series {
		months[i] = float64(m.Month)
	}

	// An all-zero series has no y range; pin the axis so it still renders.
	yMax := 1.0
	chartSeries := make([]chart.Series, 0, len(lines))
	for _, l := range lines {
		ys := make([]float64, len(series))
		for i, m := range series {
			ys[i] = float64(l.values(m))
			yMax = max(yMax, ys[i])
		}
		chartSeries = append(chartSeries, chart.ContinuousSeries{
			Name:    l.name,
			XValues: months,
			YValues: ys,
			Style:   chart.Style{StrokeColor: l.color, StrokeWidth: l.width},
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  Width,
		Height: Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name: "Month",
			ValueFormatter: func(v any) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Range: &chart.ContinuousRange{Min: 0, Max: yMax * 1.05},
			ValueFormatter: func(v any) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
		},
		Series: chartSeries,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering %q: %w", title, err)
	}
	return nil
}
