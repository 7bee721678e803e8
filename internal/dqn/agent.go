// Package dqn implements Q-learning with experience replay and an
// optional target network.
package dqn

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"rocket-circularization/internal/buffer"
	"rocket-circularization/internal/mlp"
)

const (
	weightsFile    = "weights.gob"
	experienceFile = "experience.gob"
)

// Agent owns the replay buffer, the online value network, and the
// optional target network. It is not safe for concurrent use; all
// mutation happens through its own methods.
type Agent struct {
	cfg    Config
	online *mlp.Network
	target *mlp.Network
	replay *buffer.ReplayBuffer

	epsilon float64
	rng     *rand.Rand
}

func NewAgent(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	online, err := mlp.New(rng, cfg.Dims...)
	if err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}
	replay, err := buffer.NewReplayBuffer(cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}

	a := &Agent{
		cfg:     cfg,
		online:  online,
		replay:  replay,
		epsilon: cfg.Epsilon,
		rng:     rng,
	}
	if cfg.UseTarget {
		a.target = online.Clone()
	}
	return a, nil
}

// Act selects an action for state. During training a uniform draw
// below epsilon picks a random action; otherwise, and always in
// evaluation mode, the action with the highest online Q-value wins,
// ties going to the lowest index.
func (a *Agent) Act(state []float64, evaluation bool) int {
	actions := a.cfg.Dims[len(a.cfg.Dims)-1]
	if !evaluation && a.rng.Float64() < a.epsilon {
		return a.rng.Intn(actions)
	}

	q := a.online.Predict(state)
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i] > q[best] {
			best = i
		}
	}
	return best
}

// Simulate runs one episode against env, appending every transition to
// the replay buffer. Evaluation mode only disables exploration; the
// rollout is still recorded. Returns the iteration count, the total
// reward, and the visited states.
func (a *Agent) Simulate(env Environment, render, evaluation bool) (int, float64, [][]float64) {
	state := env.Reset()
	done := false

	iters := 0
	totalReward := 0.0
	var states [][]float64

	for !done {
		if render {
			if r, ok := env.(Renderer); ok {
				r.Render()
			}
		}

		action := a.Act(state, evaluation)
		var newState []float64
		var reward float64
		newState, reward, done = env.Step(action)

		a.replay.Append(buffer.Transition{
			State:     state,
			Action:    action,
			Reward:    reward,
			Done:      done,
			NextState: newState,
		})

		state = newState
		iters++
		totalReward += reward
		states = append(states, newState)
	}

	if render {
		if p, ok := env.(Presenter); ok {
			if err := p.Show(a.cfg.Summary, a.cfg.AnimationPath); err != nil {
				fmt.Printf("show episode: %v\n", err)
			}
		}
	}

	return iters, totalReward, states
}

// Epsilon is the annealing schedule: epsilon_init * decay^(step/total).
// EpsilonDecay is the fraction of the initial value reached at
// step == totalSteps, not a per-step multiplier.
func (a *Agent) Epsilon(step, totalSteps int) float64 {
	return a.cfg.Epsilon * math.Pow(a.cfg.EpsilonDecay, float64(step)/float64(totalSteps))
}

// updateWeights performs DescentFrequency gradient descents on the
// online network, each against a fresh batch, syncing the target
// network every TargetFrequency descents. It returns the loss of the
// last descent. Callers gate on StartUpdating; an undersized buffer
// surfaces as buffer.ErrInsufficientData.
func (a *Agent) updateWeights(gamma float64) (float64, error) {
	var loss float64
	for i := 0; i < a.cfg.DescentFrequency; i++ {
		batch, err := a.replay.Sample(a.cfg.BatchSize, a.rng)
		if err != nil {
			return 0, err
		}

		if a.cfg.UseTarget && i%a.cfg.TargetFrequency == 0 {
			if err := a.target.SyncFrom(a.online); err != nil {
				return 0, err
			}
		}

		states := denseFromRows(batch.States)
		nextStates := denseFromRows(batch.NextStates)

		q := a.online.Forward(states)
		bootstrap := a.online
		if a.cfg.UseTarget {
			bootstrap = a.target
		}
		nextQ := bootstrap.Forward(nextStates)

		n := len(batch.Actions)
		actions := a.cfg.Dims[len(a.cfg.Dims)-1]
		grad := mat.NewDense(n, actions, nil)
		loss = 0
		for r := 0; r < n; r++ {
			y := bellmanTarget(batch.Rewards[r], batch.Dones[r], gamma, maxRow(nextQ, r))
			diff := q.At(r, batch.Actions[r]) - y
			loss += diff * diff
			grad.Set(r, batch.Actions[r], 2*diff/float64(n))
		}
		loss /= float64(n)

		a.online.Step(states, grad, a.cfg.LearningRate)
	}
	return loss, nil
}

// bellmanTarget is the regression label for one transition: terminal
// transitions receive no bootstrap term.
func bellmanTarget(reward float64, done bool, gamma, bootstrap float64) float64 {
	if done {
		return reward
	}
	return reward + gamma*bootstrap
}

// Save writes the online network parameters and the full replay buffer
// under dir.
func (a *Agent) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	if err := a.online.Save(filepath.Join(dir, weightsFile)); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, experienceFile))
	if err != nil {
		return fmt.Errorf("save experience: %w", err)
	}
	defer f.Close()
	return a.replay.Encode(f)
}

// Load restores network parameters and replaces the in-memory replay
// buffer with the one stored under dir. The saved network dimensions
// must exactly match this agent's.
func (a *Agent) Load(dir string) error {
	if err := a.online.Load(filepath.Join(dir, weightsFile)); err != nil {
		return err
	}
	if a.cfg.UseTarget {
		if err := a.target.SyncFrom(a.online); err != nil {
			return err
		}
	}

	f, err := os.Open(filepath.Join(dir, experienceFile))
	if err != nil {
		return fmt.Errorf("load experience: %w", err)
	}
	defer f.Close()
	replay, err := buffer.Decode(f)
	if err != nil {
		return err
	}
	a.replay = replay
	return nil
}

// ClearExperience replaces the replay buffer with a fresh empty one of
// the configured capacity.
func (a *Agent) ClearExperience() {
	replay, err := buffer.NewReplayBuffer(a.cfg.Memory)
	if err != nil {
		// Memory was validated at construction.
		panic(err)
	}
	a.replay = replay
}

// ReplaySize reports the number of buffered transitions.
func (a *Agent) ReplaySize() int {
	return a.replay.Len()
}

// CurrentEpsilon reports the exploration probability set for the
// current episode.
func (a *Agent) CurrentEpsilon() float64 {
	return a.epsilon
}

func denseFromRows(rows [][]float64) *mat.Dense {
	out := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		out.SetRow(i, row)
	}
	return out
}

func maxRow(m *mat.Dense, row int) float64 {
	_, cols := m.Dims()
	best := m.At(row, 0)
	for j := 1; j < cols; j++ {
		if v := m.At(row, j); v > best {
			best = v
		}
	}
	return best
}
