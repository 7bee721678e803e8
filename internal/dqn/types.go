package dqn

// Environment is the simulation capability the agent trains against.
// The environment owns episode termination; Step must eventually report
// done.
type Environment interface {
	Reset() []float64
	Step(action int) (state []float64, reward float64, done bool)
}

// Renderer is implemented by environments that can draw the current
// step. Rendering is a blocking side call with no feedback into
// training.
type Renderer interface {
	Render()
}

// Presenter is implemented by environments that can present the
// finished episode, either as a summary page or as an image at path.
type Presenter interface {
	Show(summary bool, path string) error
}

// History accumulates per-episode training results.
type History struct {
	Iters   []int
	Rewards []float64
	Losses  []float64
}
