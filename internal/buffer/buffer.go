package buffer

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/gammazero/deque"
)

// Transition is one environment step as seen by the agent.
// Once appended to a ReplayBuffer a transition is never mutated.
type Transition struct {
	State     []float64 `json:"state"`
	Action    int       `json:"action"`
	Reward    float64   `json:"reward"`
	Done      bool      `json:"done"`
	NextState []float64 `json:"next_state"`
}

// Batch holds the five parallel slices returned by Sample, in the
// order the indices were drawn.
type Batch struct {
	States     [][]float64
	Actions    []int
	Rewards    []float64
	Dones      []bool
	NextStates [][]float64
}

var ErrInsufficientData = errors.New("not enough transitions to sample")

// ReplayBuffer is a bounded store of transitions. When full, appending
// evicts the oldest record.
type ReplayBuffer struct {
	records  *deque.Deque[Transition]
	capacity int
}

func NewReplayBuffer(capacity int) (*ReplayBuffer, error) {
	if capacity < 1 {
		return nil, errors.New("capacity must be at least 1")
	}
	return &ReplayBuffer{
		records:  deque.New[Transition](capacity),
		capacity: capacity,
	}, nil
}

func (rb *ReplayBuffer) Append(t Transition) {
	if rb.records.Len() == rb.capacity {
		rb.records.PopFront()
	}
	rb.records.PushBack(t)
}

// Sample draws batchSize distinct transitions uniformly at random.
// The buffer itself is left unchanged; a later call may re-draw any
// record.
func (rb *ReplayBuffer) Sample(batchSize int, rng *rand.Rand) (Batch, error) {
	n := rb.records.Len()
	if batchSize > n {
		return Batch{}, fmt.Errorf("%w: have %d, want %d", ErrInsufficientData, n, batchSize)
	}

	batch := Batch{
		States:     make([][]float64, 0, batchSize),
		Actions:    make([]int, 0, batchSize),
		Rewards:    make([]float64, 0, batchSize),
		Dones:      make([]bool, 0, batchSize),
		NextStates: make([][]float64, 0, batchSize),
	}
	for _, idx := range rng.Perm(n)[:batchSize] {
		t := rb.records.At(idx)
		batch.States = append(batch.States, t.State)
		batch.Actions = append(batch.Actions, t.Action)
		batch.Rewards = append(batch.Rewards, t.Reward)
		batch.Dones = append(batch.Dones, t.Done)
		batch.NextStates = append(batch.NextStates, t.NextState)
	}
	return batch, nil
}

func (rb *ReplayBuffer) Len() int {
	return rb.records.Len()
}

func (rb *ReplayBuffer) Capacity() int {
	return rb.capacity
}

// Snapshot returns the stored transitions oldest-first.
func (rb *ReplayBuffer) Snapshot() []Transition {
	out := make([]Transition, rb.records.Len())
	for i := range out {
		out[i] = rb.records.At(i)
	}
	return out
}

type encoded struct {
	Capacity int
	Records  []Transition
}

// Encode writes the buffer, capacity included, as a single gob blob.
func (rb *ReplayBuffer) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(encoded{
		Capacity: rb.capacity,
		Records:  rb.Snapshot(),
	})
}

// Decode reads a buffer previously written by Encode.
func Decode(r io.Reader) (*ReplayBuffer, error) {
	var blob encoded
	if err := gob.NewDecoder(r).Decode(&blob); err != nil {
		return nil, fmt.Errorf("decode replay buffer: %w", err)
	}
	rb, err := NewReplayBuffer(blob.Capacity)
	if err != nil {
		return nil, err
	}
	for _, t := range blob.Records {
		rb.Append(t)
	}
	return rb, nil
}
