// Package viz renders recorded trajectories and training history. It
// consumes data produced by the agent and environment and feeds nothing
// back into training.
package viz

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Trajectory is the record of one episode: visited states, applied
// thrusts, and the radius bounds of the environment that produced it.
type Trajectory struct {
	States  [][]float64
	Thrusts [][2]float64
	RMin    float64
	RMax    float64
	RTarget float64
}

func (t *Trajectory) Record(state []float64, thrust [2]float64) {
	t.States = append(t.States, append([]float64(nil), state...))
	t.Thrusts = append(t.Thrusts, thrust)
}

func (t *Trajectory) radii() []float64 {
	out := make([]float64, len(t.States))
	for i, s := range t.States {
		out[i] = math.Hypot(s[0], s[1])
	}
	return out
}

// WriteOrbitSummary renders radius and thrust magnitude over time as an
// HTML line page at path.
func WriteOrbitSummary(path string, traj Trajectory) error {
	radii := traj.radii()

	radius := charts.NewLine()
	radius.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "orbit radius"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
	)
	radius.SetXAxis(stepLabels(len(radii)))
	radius.AddSeries("radius", lineData(radii))
	radius.AddSeries("target", lineData(constant(traj.RTarget, len(radii))))
	radius.AddSeries("r_min", lineData(constant(traj.RMin, len(radii))))
	radius.AddSeries("r_max", lineData(constant(traj.RMax, len(radii))))

	thrust := charts.NewLine()
	thrust.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "thrust magnitude"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
	)
	mags := make([]float64, len(traj.Thrusts))
	for i, u := range traj.Thrusts {
		mags[i] = math.Hypot(u[0], u[1])
	}
	thrust.SetXAxis(stepLabels(len(mags)))
	thrust.AddSeries("thrust", lineData(mags))

	return renderPage(path, radius, thrust)
}

// WriteTrainingSummary renders total reward and loss per episode as an
// HTML line page at path. losses may be shorter than rewards when some
// episodes ran without an update.
func WriteTrainingSummary(path string, rewards, losses []float64) error {
	reward := charts.NewLine()
	reward.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "total reward per episode"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
	)
	reward.SetXAxis(stepLabels(len(rewards)))
	reward.AddSeries("total reward", lineData(rewards))

	loss := charts.NewLine()
	loss.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "update loss"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
	)
	loss.SetXAxis(stepLabels(len(losses)))
	loss.AddSeries("loss", lineData(losses))

	return renderPage(path, reward, loss)
}

// SaveOrbitPNG draws the orbit path and the bounding circles to a PNG
// file at path.
func SaveOrbitPNG(path string, traj Trajectory) error {
	p := plot.New()
	p.Title.Text = "Orbit"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	pts := make(plotter.XYs, len(traj.States))
	for i, s := range traj.States {
		pts[i].X = s[0]
		pts[i].Y = s[1]
	}
	orbit, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("orbit line: %w", err)
	}
	p.Add(orbit)
	p.Legend.Add("trajectory", orbit)

	for _, c := range []struct {
		name   string
		radius float64
	}{
		{"r_min", traj.RMin},
		{"target", traj.RTarget},
		{"r_max", traj.RMax},
	} {
		line, err := plotter.NewLine(circle(c.radius))
		if err != nil {
			return fmt.Errorf("%s circle: %w", c.name, err)
		}
		p.Add(line)
		p.Legend.Add(c.name, line)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

func circle(radius float64) plotter.XYs {
	const segments = 100
	pts := make(plotter.XYs, segments+1)
	for i := 0; i <= segments; i++ {
		theta := 2 * math.Pi * float64(i) / segments
		pts[i].X = radius * math.Cos(theta)
		pts[i].Y = radius * math.Sin(theta)
	}
	return pts
}

func renderPage(path string, lines ...*charts.Line) error {
	page := components.NewPage()
	for _, line := range lines {
		page.AddCharts(line)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func stepLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("%d", i)
	}
	return labels
}

func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(values))
	for _, v := range values {
		items = append(items, opts.LineData{Value: v})
	}
	return items
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
