package dqn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"rocket-circularization/internal/buffer"
	"rocket-circularization/internal/mlp"
)

// stubEnv terminates after a fixed number of steps and pays a constant
// reward.
type stubEnv struct {
	stepsUntilDone int
	reward         float64
	steps          int
}

func (e *stubEnv) Reset() []float64 {
	e.steps = 0
	return []float64{0, 0}
}

func (e *stubEnv) Step(action int) ([]float64, float64, bool) {
	e.steps++
	state := []float64{float64(e.steps), float64(action)}
	return state, e.reward, e.steps >= e.stepsUntilDone
}

func testConfig() Config {
	return Config{
		Dims:             []int{2, 8, 3},
		Epsilon:          1.0,
		EpsilonDecay:     0.1,
		Gamma:            0.9,
		Memory:           64,
		StartUpdating:    4,
		BatchSize:        4,
		LearningRate:     0.01,
		DescentFrequency: 2,
		UpdateFrequency:  1,
		UseTarget:        true,
		TargetFrequency:  1,
		Episodes:         3,
		RenderFrequency:  1000,
		Seed:             42,
	}
}

func TestNewAgentRejectsBadConfig(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.Dims = []int{2} },
		func(c *Config) { c.Epsilon = 1.5 },
		func(c *Config) { c.EpsilonDecay = 0 },
		func(c *Config) { c.Gamma = -0.1 },
		func(c *Config) { c.Memory = 0 },
		func(c *Config) { c.BatchSize = 65 },
		func(c *Config) { c.StartUpdating = 1 },
		func(c *Config) { c.LearningRate = 0 },
		func(c *Config) { c.DescentFrequency = 0 },
		func(c *Config) { c.UpdateFrequency = 0 },
		func(c *Config) { c.TargetFrequency = 0 },
		func(c *Config) { c.Episodes = 0 },
		func(c *Config) { c.RenderFrequency = 0 },
	}
	for i, mutate := range bad {
		cfg := testConfig()
		mutate(&cfg)
		_, err := NewAgent(cfg)
		require.Error(t, err, "case %d", i)
	}
}

func TestEpsilonSchedule(t *testing.T) {
	a, err := NewAgent(testConfig())
	require.NoError(t, err)

	for _, total := range []int{1, 10, 100000} {
		require.Equal(t, 1.0, a.Epsilon(0, total))
		require.InDelta(t, 0.1, a.Epsilon(total, total), 1e-12)
	}
	// Exponential interpolation, not linear.
	require.InDelta(t, math.Sqrt(0.1), a.Epsilon(50, 100), 1e-12)
}

func TestActEvaluationIsDeterministic(t *testing.T) {
	a, err := NewAgent(testConfig())
	require.NoError(t, err)
	a.epsilon = 1.0 // evaluation must ignore it

	state := []float64{0.3, -0.3}
	first := a.Act(state, true)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, a.Act(state, true))
	}
}

func TestActReturnsValidActions(t *testing.T) {
	a, err := NewAgent(testConfig())
	require.NoError(t, err)
	a.epsilon = 1.0

	state := []float64{0.1, 0.2}
	for i := 0; i < 50; i++ {
		action := a.Act(state, false)
		require.GreaterOrEqual(t, action, 0)
		require.Less(t, action, 3)
	}
}

func TestBellmanTarget(t *testing.T) {
	require.InDelta(t, 2.8, bellmanTarget(1, false, 0.9, 2), 1e-12)
	// Terminal transitions receive no bootstrap term.
	require.Equal(t, 1.0, bellmanTarget(1, true, 0.9, 100))
	require.Equal(t, -3.0, bellmanTarget(-3, true, 1.0, 1e9))
}

func TestTargetSnapshotMatchesOnline(t *testing.T) {
	a, err := NewAgent(testConfig())
	require.NoError(t, err)

	state := []float64{0.7, -0.1}
	require.Equal(t, a.online.Predict(state), a.target.Predict(state))

	env := &stubEnv{stepsUntilDone: 8, reward: 1}
	a.Simulate(env, false, false)
	_, err = a.updateWeights(a.cfg.Gamma)
	require.NoError(t, err)

	// Online moved after the last sync; a fresh snapshot restores
	// equality.
	require.NoError(t, a.target.SyncFrom(a.online))
	require.Equal(t, a.online.Predict(state), a.target.Predict(state))
}

func TestSimulateFillsBuffer(t *testing.T) {
	a, err := NewAgent(testConfig())
	require.NoError(t, err)

	env := &stubEnv{stepsUntilDone: 5, reward: 2}
	iters, totalReward, states := a.Simulate(env, false, false)
	require.Equal(t, 5, iters)
	require.InDelta(t, 10.0, totalReward, 1e-12)
	require.Len(t, states, 5)
	require.Equal(t, 5, a.ReplaySize())

	// Evaluation rollouts are recorded too.
	a.Simulate(env, false, true)
	require.Equal(t, 10, a.ReplaySize())

	last := a.replay.Snapshot()[9]
	require.True(t, last.Done)
	require.Equal(t, []float64{5, float64(last.Action)}, last.NextState)
}

func TestUpdateWeightsInsufficientData(t *testing.T) {
	a, err := NewAgent(testConfig())
	require.NoError(t, err)

	_, err = a.updateWeights(a.cfg.Gamma)
	require.ErrorIs(t, err, buffer.ErrInsufficientData)
}

func TestTrainSmoke(t *testing.T) {
	a, err := NewAgent(testConfig())
	require.NoError(t, err)

	env := &stubEnv{stepsUntilDone: 5, reward: 1}
	hist, err := a.Train(env)
	require.NoError(t, err)

	require.Len(t, hist.Iters, 3)
	require.Len(t, hist.Rewards, 3)
	// The buffer passes StartUpdating during the first episode, so
	// every episode performs an update.
	require.Len(t, hist.Losses, 3)
	require.Equal(t, 15, a.ReplaySize())
	require.InDelta(t, a.Epsilon(2, 3), a.CurrentEpsilon(), 1e-12)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	a, err := NewAgent(testConfig())
	require.NoError(t, err)
	env := &stubEnv{stepsUntilDone: 6, reward: 1}
	a.Simulate(env, false, false)

	state := []float64{0.2, 0.4}
	wantPrediction := a.online.Predict(state)
	wantSnapshot := a.replay.Snapshot()
	require.NoError(t, a.Save(dir))

	a.ClearExperience()
	require.Equal(t, 0, a.ReplaySize())

	require.NoError(t, a.Load(dir))
	require.Equal(t, len(wantSnapshot), a.ReplaySize())
	require.Equal(t, wantSnapshot, a.replay.Snapshot())
	require.Equal(t, wantPrediction, a.online.Predict(state))
	require.Equal(t, wantPrediction, a.target.Predict(state))
}

func TestLoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()

	a, err := NewAgent(testConfig())
	require.NoError(t, err)
	env := &stubEnv{stepsUntilDone: 4, reward: 1}
	a.Simulate(env, false, false)
	require.NoError(t, a.Save(dir))

	cfg := testConfig()
	cfg.Dims = []int{2, 4, 3}
	other, err := NewAgent(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, other.Load(dir), mlp.ErrDimensionMismatch)
}

func TestClearExperienceKeepsCapacity(t *testing.T) {
	a, err := NewAgent(testConfig())
	require.NoError(t, err)
	env := &stubEnv{stepsUntilDone: 6, reward: 1}
	a.Simulate(env, false, false)
	require.NotZero(t, a.ReplaySize())

	a.ClearExperience()
	require.Equal(t, 0, a.ReplaySize())
	require.Equal(t, testConfig().Memory, a.replay.Capacity())
}
