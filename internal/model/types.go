package model

import (
	"errors"
	"math"
)

// DefaultClasses is the clinical label set, in model output order.
var DefaultClasses = []string{"Normal", "VeryMildDemented", "MildDemented", "ModerateDemented"}

// ErrNoFeatureMap is returned by handles that cannot expose a convolutional
// feature map (missing feature output or classifier head weights).
var ErrNoFeatureMap = errors.New("model exposes no convolutional feature map")

// Metadata describes an exported model artifact. HeadWeights is the
// classifier head's weight matrix (classes x feature channels) and is
// required for class-activation saliency.
type Metadata struct {
	Classes      []string    `json:"classes"`
	ImageSize    int         `json:"image_size"`
	InputShape   []int64     `json:"input_shape"`
	LogitsShape  []int64     `json:"logits_shape"`
	FeatureShape []int64     `json:"feature_shape"`
	HeadWeights  [][]float32 `json:"head_weights"`
}

// Prediction is a single classification outcome. Probabilities is aligned to
// the class order and sums to 1; Probabilities[Index] is the maximum.
type Prediction struct {
	Label         string    `json:"label"`
	Index         int       `json:"index"`
	Probabilities []float32 `json:"probabilities"`
}

// FeatureMap is the activation of the final convolutional layer, CHW layout.
type FeatureMap struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

func (f *FeatureMap) At(c, y, x int) float32 {
	return f.Data[c*f.Height*f.Width+y*f.Width+x]
}

// Handle is a loaded classifier. Saliency uses an explicit two-phase
// contract: FeatureForward captures the final conv activation, ClassWeights
// gives the spatially reduced gradient of the class score with respect to it.
type Handle interface {
	Classes() []string
	Predict(input []float32) (*Prediction, error)
	FeatureForward(input []float32) ([]float32, *FeatureMap, error)
	ClassWeights(classIndex int) ([]float32, error)
}

func softmax(logits []float32) []float32 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	probs := make([]float32, len(logits))
	var sum float32
	for i, v := range logits {
		e := float32(math.Exp(float64(v - max)))
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func argmax(vals []float32) int {
	idx := 0
	for i, v := range vals {
		if v > vals[idx] {
			idx = i
		}
	}
	return idx
}

func newPrediction(classes []string, logits []float32) *Prediction {
	probs := softmax(logits)
	idx := argmax(probs)
	return &Prediction{
		Label:         classes[idx],
		Index:         idx,
		Probabilities: probs,
	}
}
