// Package rocket simulates a point mass orbiting a central body under
// inverse-square gravity. The agent fires one of a fixed set of thrust
// vectors each step and is rewarded for circularizing its orbit at the
// target radius.
package rocket

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/logrusorgru/aurora"

	"rocket-circularization/internal/viz"
)

const (
	gravParam = 1.0 // G * M of the central body
	dt        = 0.01
	maxSteps  = 500

	defaultRMin    = 0.1
	defaultRMax    = 2.0
	defaultRTarget = 1.0

	inboundsReward  = 1.0
	circularPenalty = 1.0
	thrustPenalty   = 0.0
)

// DefaultThrusts is the discrete action set: four fixed thrust vectors
// in the world frame.
var DefaultThrusts = [][2]float64{
	{0.1, 0},
	{0, 0.1},
	{-0.1, 0},
	{0, -0.1},
}

// Env holds the simulation state. State vectors are [x, y, vx, vy].
type Env struct {
	RMin    float64
	RMax    float64
	RTarget float64
	Thrusts [][2]float64
	Rand    *rand.Rand

	state [4]float64
	steps int
	traj  viz.Trajectory
}

func NewEnv(rng *rand.Rand) *Env {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	env := &Env{
		RMin:    defaultRMin,
		RMax:    defaultRMax,
		RTarget: defaultRTarget,
		Thrusts: DefaultThrusts,
		Rand:    rng,
	}
	env.Reset()
	return env
}

// Reset places the rocket on a slightly eccentric orbit at the target
// radius, rotated by a uniformly random angle, and clears the recorded
// trajectory.
func (e *Env) Reset() []float64 {
	theta := e.Rand.Float64() * 2 * math.Pi
	cos, sin := math.Cos(theta), math.Sin(theta)

	// Base state (1, 0, 0, 1.1): circular position, 10% excess
	// tangential velocity.
	x, y := e.RTarget, 0.0
	vx, vy := 0.0, 1.1*math.Sqrt(gravParam/e.RTarget)

	e.state = [4]float64{
		x*cos - y*sin,
		x*sin + y*cos,
		vx*cos - vy*sin,
		vx*sin + vy*cos,
	}
	e.steps = 0
	e.traj = viz.Trajectory{RMin: e.RMin, RMax: e.RMax, RTarget: e.RTarget}
	e.traj.Record(e.state[:], [2]float64{})
	return e.State()
}

// State returns a copy of the current state vector.
func (e *Env) State() []float64 {
	out := make([]float64, 4)
	copy(out, e.state[:])
	return out
}

func (e *Env) StateDims() int  { return 4 }
func (e *Env) ActionDims() int { return len(e.Thrusts) }

// Step integrates one dt of dynamics under the chosen thrust and
// returns the new state, the reward, and whether the episode ended.
func (e *Env) Step(action int) ([]float64, float64, bool) {
	thrust := [2]float64{}
	if action >= 0 && action < len(e.Thrusts) {
		thrust = e.Thrusts[action]
	}

	x, y, vx, vy := e.state[0], e.state[1], e.state[2], e.state[3]
	r := math.Hypot(x, y)
	r3 := r * r * r

	// Semi-implicit Euler keeps the orbit from spiraling numerically.
	ax := -gravParam*x/r3 + thrust[0]
	ay := -gravParam*y/r3 + thrust[1]
	vx += ax * dt
	vy += ay * dt
	x += vx * dt
	y += vy * dt

	e.state = [4]float64{x, y, vx, vy}
	e.steps++
	e.traj.Record(e.state[:], thrust)

	r = math.Hypot(x, y)
	done := r < e.RMin || r > e.RMax || e.steps >= maxSteps
	reward := inboundsReward - circularPenalty*e.deviation() -
		thrustPenalty*math.Hypot(thrust[0], thrust[1])

	return e.State(), reward, done
}

// deviation measures the squared distance from the circular orbit at
// the target radius: radial error, radial velocity, and tangential
// velocity relative to the circular speed.
func (e *Env) deviation() float64 {
	x, y, vx, vy := e.state[0], e.state[1], e.state[2], e.state[3]
	r := math.Hypot(x, y)
	ux, uy := x/r, y/r

	vr := vx*ux + vy*uy
	vt := -vx*uy + vy*ux
	vCirc := math.Sqrt(gravParam / e.RTarget)

	dr := r - e.RTarget
	dvt := vt - vCirc
	return dr*dr + vr*vr + dvt*dvt
}

// Render prints a one-line snapshot of the orbit.
func (e *Env) Render() {
	r := math.Hypot(e.state[0], e.state[1])
	v := math.Hypot(e.state[2], e.state[3])
	label := aurora.Green("in-bounds")
	if r < e.RMin || r > e.RMax {
		label = aurora.Red("out-of-bounds")
	}
	fmt.Printf("step %4d  r=%.4f  v=%.4f  %s\n", e.steps, r, v, label)
}

// Show hands the recorded trajectory to the visualization subsystem:
// an HTML radius/thrust summary when summary is true, otherwise a PNG
// of the orbit path at path.
func (e *Env) Show(summary bool, path string) error {
	if summary {
		if path == "" {
			path = "charts/orbit_summary.html"
		}
		return viz.WriteOrbitSummary(path, e.traj)
	}
	if path == "" {
		path = "charts/orbit.png"
	}
	return viz.SaveOrbitPNG(path, e.traj)
}

// Trajectory returns the states and thrusts recorded since the last
// Reset.
func (e *Env) Trajectory() viz.Trajectory {
	return e.traj
}

// MaxSteps is the episode step cap enforced by the environment.
func MaxSteps() int {
	return maxSteps
}
