package nnmodel

import "testing"

// identityNetworkJSON is a single-layer network whose weights pass the
// first input straight through (one output, two inputs: weight [1, 0]).
const identityNetworkJSON = `{
  "layers": [
    {"weights": [[1, 0]], "biases": [0]}
  ]
}`

func TestLoadAndForward(t *testing.T) {
	n, err := Load([]byte(identityNetworkJSON), 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := n.Forward([]float64{3.5, -100})
	if len(out) != 1 || out[0] != 3.5 {
		t.Fatalf("Forward = %v, want [3.5]", out)
	}
}

func TestLoadRejectsWrongWidth(t *testing.T) {
	_, err := Load([]byte(identityNetworkJSON), 5)
	if err == nil {
		t.Fatalf("expected ErrModelShape for mismatched feature width")
	}
	var shapeErr *ErrModelShape
	if !asShapeErr(err, &shapeErr) {
		t.Fatalf("expected *ErrModelShape, got %T: %v", err, err)
	}
	if shapeErr.Expected != 5 || shapeErr.Got != 2 {
		t.Errorf("ErrModelShape = %+v, want Expected=5 Got=2", shapeErr)
	}
}

func asShapeErr(err error, target **ErrModelShape) bool {
	if e, ok := err.(*ErrModelShape); ok {
		*target = e
		return true
	}
	return false
}

func TestForwardReLUHiddenLayers(t *testing.T) {
	// Two layers: hidden layer clamps negative sums to zero, output layer
	// is linear (no clamping) and should pass a negative bias through.
	net := &Network{
		Layers: []Layer{
			{Weights: [][]float64{{1}, {-1}}, Biases: []float64{0, 0}},
			{Weights: [][]float64{{1, 1}}, Biases: []float64{-10}},
		},
	}
	out := net.Forward([]float64{5})
	// hidden: [5, -5] -> ReLU -> [5, 0]; output: 5*1 + 0*1 - 10 = -5
	if len(out) != 1 || out[0] != -5 {
		t.Fatalf("Forward = %v, want [-5]", out)
	}
}

func TestInputWidth(t *testing.T) {
	n, err := Load([]byte(identityNetworkJSON), 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n.InputWidth() != 2 {
		t.Errorf("InputWidth() = %d, want 2", n.InputWidth())
	}
}
