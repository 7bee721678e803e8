// Package mlp implements the feed-forward value network used by the
// DQN agent: ReLU hidden layers, a linear output layer, and plain
// gradient-descent updates driven by an externally supplied output
// gradient.
package mlp

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/mat"
)

var ErrDimensionMismatch = errors.New("network dimensions do not match")

// Network maps a batch of state vectors to a batch of action-value
// vectors. Layer widths are fixed at construction.
type Network struct {
	dims    []int
	weights []*mat.Dense // weights[l] has shape dims[l] x dims[l+1]
	biases  []*mat.Dense // biases[l] has shape 1 x dims[l+1]
}

func New(rng *rand.Rand, dims ...int) (*Network, error) {
	if len(dims) < 2 {
		return nil, errors.New("need at least input and output widths")
	}
	for _, d := range dims {
		if d < 1 {
			return nil, fmt.Errorf("invalid layer width %d", d)
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	n := &Network{dims: append([]int(nil), dims...)}
	for l := 0; l < len(dims)-1; l++ {
		in, out := dims[l], dims[l+1]
		w := mat.NewDense(in, out, nil)
		// Glorot-uniform initialization.
		limit := math.Sqrt(6.0 / float64(in+out))
		for i := 0; i < in; i++ {
			for j := 0; j < out; j++ {
				w.Set(i, j, (rng.Float64()*2-1)*limit)
			}
		}
		n.weights = append(n.weights, w)
		n.biases = append(n.biases, mat.NewDense(1, out, nil))
	}
	return n, nil
}

// Dims returns the layer widths the network was built with.
func (n *Network) Dims() []int {
	return append([]int(nil), n.dims...)
}

func (n *Network) NumInputs() int  { return n.dims[0] }
func (n *Network) NumOutputs() int { return n.dims[len(n.dims)-1] }

// Forward runs a batch of state rows through the network and returns
// the action-value rows.
func (n *Network) Forward(states *mat.Dense) *mat.Dense {
	out, _ := n.forward(states)
	return out
}

// forward returns the output plus every layer's post-activation values
// (index 0 is the input itself), for use in backpropagation.
func (n *Network) forward(states *mat.Dense) (*mat.Dense, []*mat.Dense) {
	acts := make([]*mat.Dense, 0, len(n.weights)+1)
	acts = append(acts, states)

	a := states
	for l, w := range n.weights {
		rows, _ := a.Dims()
		_, cols := w.Dims()
		z := mat.NewDense(rows, cols, nil)
		z.Mul(a, w)
		last := l == len(n.weights)-1
		z.Apply(func(_, j int, v float64) float64 {
			v += n.biases[l].At(0, j)
			if !last && v < 0 {
				return 0 // ReLU on hidden layers
			}
			return v
		}, z)
		acts = append(acts, z)
		a = z
	}
	return a, acts
}

// Predict evaluates a single state vector.
func (n *Network) Predict(state []float64) []float64 {
	out := n.Forward(mat.NewDense(1, len(state), append([]float64(nil), state...)))
	return append([]float64(nil), out.RawRowView(0)...)
}

// Step performs one gradient-descent update. gradOut is dLoss/dOutput
// for the batch in states, one row per sample.
func (n *Network) Step(states, gradOut *mat.Dense, learningRate float64) {
	_, acts := n.forward(states)

	// The output layer is linear, so dLoss/dZ at the top is gradOut.
	delta := gradOut
	for l := len(n.weights) - 1; l >= 0; l-- {
		prev := acts[l]

		inDim, outDim := n.weights[l].Dims()
		gradW := mat.NewDense(inDim, outDim, nil)
		gradW.Mul(prev.T(), delta)

		rows, _ := delta.Dims()
		gradB := mat.NewDense(1, outDim, nil)
		for i := 0; i < rows; i++ {
			for j := 0; j < outDim; j++ {
				gradB.Set(0, j, gradB.At(0, j)+delta.At(i, j))
			}
		}

		if l > 0 {
			// Propagate through the ReLU of the layer below before
			// touching this layer's weights.
			next := mat.NewDense(rows, inDim, nil)
			next.Mul(delta, n.weights[l].T())
			next.Apply(func(i, j int, v float64) float64 {
				if prev.At(i, j) <= 0 {
					return 0
				}
				return v
			}, next)
			delta = next
		}

		gradW.Scale(learningRate, gradW)
		n.weights[l].Sub(n.weights[l], gradW)
		gradB.Scale(learningRate, gradB)
		n.biases[l].Sub(n.biases[l], gradB)
	}
}

// Clone returns a deep copy with identical parameters.
func (n *Network) Clone() *Network {
	out := &Network{dims: append([]int(nil), n.dims...)}
	for l := range n.weights {
		out.weights = append(out.weights, mat.DenseCopyOf(n.weights[l]))
		out.biases = append(out.biases, mat.DenseCopyOf(n.biases[l]))
	}
	return out
}

// SyncFrom overwrites this network's parameters with a hard snapshot of
// src. No structural sharing remains after the copy.
func (n *Network) SyncFrom(src *Network) error {
	if !sameDims(n.dims, src.dims) {
		return fmt.Errorf("%w: %v vs %v", ErrDimensionMismatch, n.dims, src.dims)
	}
	for l := range n.weights {
		n.weights[l].Copy(src.weights[l])
		n.biases[l].Copy(src.biases[l])
	}
	return nil
}

type encoded struct {
	Dims    []int
	Weights [][]float64
	Biases  [][]float64
}

// Save writes the parameters to path as a gob file.
func (n *Network) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save network: %w", err)
	}
	defer f.Close()

	blob := encoded{Dims: n.dims}
	for l := range n.weights {
		blob.Weights = append(blob.Weights, append([]float64(nil), n.weights[l].RawMatrix().Data...))
		blob.Biases = append(blob.Biases, append([]float64(nil), n.biases[l].RawMatrix().Data...))
	}
	return gob.NewEncoder(f).Encode(blob)
}

// Load restores parameters previously written by Save. The saved
// dimensions must exactly match this network's.
func (n *Network) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load network: %w", err)
	}
	defer f.Close()

	var blob encoded
	if err := gob.NewDecoder(f).Decode(&blob); err != nil {
		return fmt.Errorf("load network: %w", err)
	}
	if !sameDims(n.dims, blob.Dims) {
		return fmt.Errorf("%w: saved %v, network %v", ErrDimensionMismatch, blob.Dims, n.dims)
	}
	if len(blob.Weights) != len(n.weights) || len(blob.Biases) != len(n.biases) {
		return fmt.Errorf("%w: saved %d layers, network %d", ErrDimensionMismatch, len(blob.Weights), len(n.weights))
	}
	for l := range n.weights {
		in, out := n.weights[l].Dims()
		if len(blob.Weights[l]) != in*out || len(blob.Biases[l]) != out {
			return fmt.Errorf("%w: layer %d parameter count", ErrDimensionMismatch, l)
		}
		n.weights[l] = mat.NewDense(in, out, append([]float64(nil), blob.Weights[l]...))
		n.biases[l] = mat.NewDense(1, out, append([]float64(nil), blob.Biases[l]...))
	}
	return nil
}

func sameDims(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
