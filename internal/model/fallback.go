package model

import (
	"fmt"
	"math/rand"
)

const (
	fallbackInputSize = 224
	fallbackChannels  = 8
	fallbackKernel    = 3
	fallbackStride    = 8
)

// fallbackNet is a small randomly initialized convolutional network used when
// no trained artifact is available. It keeps the service operable (with
// untrained, essentially arbitrary predictions) and supports the full Handle
// contract including the feature map needed for saliency.
//
// Architecture: one 3x3 conv bank (8 filters, stride 8) over the 3x224x224
// input, ReLU, global average pool, linear head, softmax.
type fallbackNet struct {
	classes []string
	// conv[f][c][ky][kx]
	conv [][][][]float32
	// head[class][f], headBias[class]
	head     [][]float32
	headBias []float32
	featDim  int
}

func newFallbackNet(classes []string) *fallbackNet {
	if len(classes) == 0 {
		classes = DefaultClasses
	}
	// Fixed seed keeps the fallback stable across processes and calls.
	rng := rand.New(rand.NewSource(42))

	conv := make([][][][]float32, fallbackChannels)
	for f := range conv {
		conv[f] = make([][][]float32, 3)
		for c := range conv[f] {
			conv[f][c] = make([][]float32, fallbackKernel)
			for ky := range conv[f][c] {
				conv[f][c][ky] = make([]float32, fallbackKernel)
				for kx := range conv[f][c][ky] {
					conv[f][c][ky][kx] = float32(rng.NormFloat64()) * 0.2
				}
			}
		}
	}

	head := make([][]float32, len(classes))
	bias := make([]float32, len(classes))
	for k := range head {
		head[k] = make([]float32, fallbackChannels)
		for f := range head[k] {
			head[k][f] = float32(rng.NormFloat64()) * 0.5
		}
		bias[k] = float32(rng.NormFloat64()) * 0.1
	}

	featDim := (fallbackInputSize-fallbackKernel)/fallbackStride + 1
	return &fallbackNet{
		classes:  classes,
		conv:     conv,
		head:     head,
		headBias: bias,
		featDim:  featDim,
	}
}

func (n *fallbackNet) Classes() []string { return n.classes }

// forward computes the feature map and the logits. Stateless, safe for
// concurrent callers.
func (n *fallbackNet) forward(input []float32) ([]float32, *FeatureMap, error) {
	want := 3 * fallbackInputSize * fallbackInputSize
	if len(input) != want {
		return nil, nil, fmt.Errorf("expected %d input values, got %d", want, len(input))
	}

	d := n.featDim
	fm := &FeatureMap{
		Channels: fallbackChannels,
		Height:   d,
		Width:    d,
		Data:     make([]float32, fallbackChannels*d*d),
	}

	plane := fallbackInputSize * fallbackInputSize
	for f := 0; f < fallbackChannels; f++ {
		for oy := 0; oy < d; oy++ {
			for ox := 0; ox < d; ox++ {
				var acc float32
				iy0 := oy * fallbackStride
				ix0 := ox * fallbackStride
				for c := 0; c < 3; c++ {
					for ky := 0; ky < fallbackKernel; ky++ {
						row := (iy0+ky)*fallbackInputSize + ix0
						for kx := 0; kx < fallbackKernel; kx++ {
							acc += n.conv[f][c][ky][kx] * input[c*plane+row+kx]
						}
					}
				}
				if acc < 0 {
					acc = 0
				}
				fm.Data[f*d*d+oy*d+ox] = acc
			}
		}
	}

	// Global average pool, then the linear head.
	pooled := make([]float32, fallbackChannels)
	area := float32(d * d)
	for f := 0; f < fallbackChannels; f++ {
		var sum float32
		for _, v := range fm.Data[f*d*d : (f+1)*d*d] {
			sum += v
		}
		pooled[f] = sum / area
	}

	logits := make([]float32, len(n.classes))
	for k := range n.head {
		acc := n.headBias[k]
		for f, w := range n.head[k] {
			acc += w * pooled[f]
		}
		logits[k] = acc
	}
	return logits, fm, nil
}

func (n *fallbackNet) Predict(input []float32) (*Prediction, error) {
	logits, _, err := n.forward(input)
	if err != nil {
		return nil, err
	}
	return newPrediction(n.classes, logits), nil
}

func (n *fallbackNet) FeatureForward(input []float32) ([]float32, *FeatureMap, error) {
	return n.forward(input)
}

func (n *fallbackNet) ClassWeights(classIndex int) ([]float32, error) {
	if classIndex < 0 || classIndex >= len(n.head) {
		return nil, fmt.Errorf("class index %d out of range", classIndex)
	}
	area := float32(n.featDim * n.featDim)
	weights := make([]float32, fallbackChannels)
	for f, w := range n.head[classIndex] {
		weights[f] = w / area
	}
	return weights, nil
}
