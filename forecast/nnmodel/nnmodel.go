// Package nnmodel is the shared inference-only runtime for the PV and load
// point regressors: a feed-forward network with ReLU hidden layers and a
// linear output layer, loaded from a JSON weight artifact. Training is out
// of scope here (see DESIGN.md); only Forward is carried over.
package nnmodel

import (
	"encoding/json"
	"fmt"
)

// Layer is a fully-connected layer: Weights is [out][in], Biases is [out].
type Layer struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// Network is a feedforward network with ReLU hidden layers and a linear
// output layer.
type Network struct {
	Layers []Layer `json:"layers"`
}

// ErrModelShape is returned when a loaded model's layer shapes don't match
// the feature width the caller expects — the "missing model artifact"
// fatal error kind of §7.
type ErrModelShape struct {
	Expected int
	Got      int
}

func (e *ErrModelShape) Error() string {
	return fmt.Sprintf("nnmodel: expected input width %d, model's first layer expects %d", e.Expected, e.Got)
}

// Load parses a JSON-serialized Network and checks its input width against
// featureWidth.
func Load(data []byte, featureWidth int) (*Network, error) {
	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("nnmodel: decoding model: %w", err)
	}
	if err := n.validate(featureWidth); err != nil {
		return nil, err
	}
	return &n, nil
}

func (n *Network) validate(featureWidth int) error {
	if len(n.Layers) == 0 {
		return &ErrModelShape{Expected: featureWidth, Got: 0}
	}
	first := n.Layers[0]
	if len(first.Weights) == 0 || len(first.Weights[0]) != featureWidth {
		got := 0
		if len(first.Weights) > 0 {
			got = len(first.Weights[0])
		}
		return &ErrModelShape{Expected: featureWidth, Got: got}
	}
	for i, l := range n.Layers {
		if len(l.Weights) != len(l.Biases) {
			return fmt.Errorf("nnmodel: layer %d has %d weight rows but %d biases", i, len(l.Weights), len(l.Biases))
		}
	}
	return nil
}

// Forward computes the network's output for a given input vector. Hidden
// layers apply ReLU; the final layer is linear.
func (n *Network) Forward(input []float64) []float64 {
	x := input
	for i, l := range n.Layers {
		y := make([]float64, len(l.Weights))
		for j, row := range l.Weights {
			sum := l.Biases[j]
			for k, w := range row {
				sum += w * x[k]
			}
			y[j] = sum
		}
		if i < len(n.Layers)-1 {
			for j := range y {
				if y[j] < 0 {
					y[j] = 0
				}
			}
		}
		x = y
	}
	return x
}

// InputWidth returns the feature width this network expects.
func (n *Network) InputWidth() int {
	if len(n.Layers) == 0 || len(n.Layers[0].Weights) == 0 {
		return 0
	}
	return len(n.Layers[0].Weights[0])
}
