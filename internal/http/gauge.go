package http

import (
	"fmt"
	"math"

	"lifeassistant/internal/core"
)

// Gauge geometry: a half dial centred at (gaugeCX, gaugeCY) opening upwards.
const (
	gaugeCX     = 120.0
	gaugeCY     = 120.0
	gaugeRadius = 90.0

	gaugeLowBand       = 0.5
	gaugeHighBand      = 0.8
	gaugeThresholdMark = 0.1
)

// gaugeView is the precomputed SVG for the remaining-budget dial.
// The axis runs from 0 to the month's budgeted total.
type gaugeView struct {
	Track     string
	LowBand   string
	HighBand  string
	ValueArc  string
	Color     string
	Threshold struct{ X1, Y1, X2, Y2 string }

	Remaining float64
	Budgeted  float64
	Delta     float64
}

func newGaugeView(s *core.BudgetSummary) gaugeView {
	g := gaugeView{
		Track:     arcPath(0, 1, gaugeRadius),
		LowBand:   arcPath(0, gaugeLowBand, gaugeRadius),
		HighBand:  arcPath(gaugeLowBand, gaugeHighBand, gaugeRadius),
		Color:     "green",
		Remaining: s.Remaining,
		Budgeted:  s.Budgeted,
		Delta:     s.Remaining - s.Budgeted,
	}
	if s.Remaining <= 0 {
		g.Color = "red"
	}

	var frac float64
	if s.Budgeted > 0 {
		frac = clamp01(s.Remaining / s.Budgeted)
	}
	if frac > 0 {
		g.ValueArc = arcPath(0, frac, gaugeRadius)
	}

	x1, y1 := dialPoint(gaugeThresholdMark, gaugeRadius-14)
	x2, y2 := dialPoint(gaugeThresholdMark, gaugeRadius+14)
	g.Threshold.X1, g.Threshold.Y1 = coord(x1), coord(y1)
	g.Threshold.X2, g.Threshold.Y2 = coord(x2), coord(y2)
	return g
}

// dialPoint maps a fraction of the axis to a point on the half circle;
// 0 sits on the left, 1 on the right.
func dialPoint(frac, radius float64) (x, y float64) {
	theta := math.Pi * (1 - frac)
	return gaugeCX + radius*math.Cos(theta), gaugeCY - radius*math.Sin(theta)
}

func arcPath(from, to, radius float64) string {
	x0, y0 := dialPoint(from, radius)
	x1, y1 := dialPoint(to, radius)
	return fmt.Sprintf("M %s %s A %s %s 0 0 1 %s %s",
		coord(x0), coord(y0), coord(radius), coord(radius), coord(x1), coord(y1))
}

func coord(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
