package model

import (
	"math"
	"math/rand"
	"testing"
)

func testInput() []float32 {
	rng := rand.New(rand.NewSource(7))
	in := make([]float32, 3*fallbackInputSize*fallbackInputSize)
	for i := range in {
		in[i] = float32(rng.Float64()*2 - 1)
	}
	return in
}

func TestFallbackPredict_Distribution(t *testing.T) {
	n := newFallbackNet(nil)
	pred, err := n.Predict(testInput())
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	if len(pred.Probabilities) != len(DefaultClasses) {
		t.Fatalf("expected %d probabilities, got %d", len(DefaultClasses), len(pred.Probabilities))
	}
	var sum float64
	for _, p := range pred.Probabilities {
		if p < 0 || p > 1 {
			t.Fatalf("probability out of range: %f", p)
		}
		sum += float64(p)
	}
	if math.Abs(sum-1.0) > 1e-4 {
		t.Fatalf("probabilities sum to %f", sum)
	}

	max := pred.Probabilities[0]
	for _, p := range pred.Probabilities {
		if p > max {
			max = p
		}
	}
	if pred.Probabilities[pred.Index] != max {
		t.Fatalf("Index %d does not point at the max probability", pred.Index)
	}
	if pred.Label != DefaultClasses[pred.Index] {
		t.Fatalf("label %q does not match index %d", pred.Label, pred.Index)
	}
}

func TestFallbackPredict_WrongInputSize(t *testing.T) {
	n := newFallbackNet(nil)
	if _, err := n.Predict(make([]float32, 10)); err == nil {
		t.Fatal("expected error for short input")
	}
}

func TestFallbackFeatureForward(t *testing.T) {
	n := newFallbackNet(nil)
	logits, fm, err := n.FeatureForward(testInput())
	if err != nil {
		t.Fatalf("feature forward: %v", err)
	}
	if len(logits) != len(DefaultClasses) {
		t.Fatalf("expected %d logits, got %d", len(DefaultClasses), len(logits))
	}
	if fm.Channels != fallbackChannels {
		t.Fatalf("expected %d channels, got %d", fallbackChannels, fm.Channels)
	}
	if len(fm.Data) != fm.Channels*fm.Height*fm.Width {
		t.Fatalf("feature map size %d does not match dims", len(fm.Data))
	}
	// ReLU output
	for i, v := range fm.Data {
		if v < 0 {
			t.Fatalf("negative activation at %d: %f", i, v)
		}
	}
}

func TestFallbackClassWeights(t *testing.T) {
	n := newFallbackNet(nil)
	w, err := n.ClassWeights(1)
	if err != nil {
		t.Fatalf("class weights: %v", err)
	}
	if len(w) != fallbackChannels {
		t.Fatalf("expected %d weights, got %d", fallbackChannels, len(w))
	}
	if _, err := n.ClassWeights(len(DefaultClasses)); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if _, err := n.ClassWeights(-1); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestFallbackDeterministic(t *testing.T) {
	in := testInput()
	a, err := newFallbackNet(nil).Predict(in)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	b, err := newFallbackNet(nil).Predict(in)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if a.Index != b.Index {
		t.Fatalf("two fallback nets disagree: %d vs %d", a.Index, b.Index)
	}
	for i := range a.Probabilities {
		if a.Probabilities[i] != b.Probabilities[i] {
			t.Fatalf("probability %d differs: %f vs %f", i, a.Probabilities[i], b.Probabilities[i])
		}
	}
}
