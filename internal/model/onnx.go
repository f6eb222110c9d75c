package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// onnxHandle wraps an onnxruntime session over a trained artifact exported
// with two outputs: the class logits and the final convolutional feature map.
// The session reuses pre-allocated tensors, so Run is serialized with a mutex.
type onnxHandle struct {
	mu            sync.Mutex
	session       *ort.AdvancedSession
	meta          Metadata
	inputTensor   *ort.Tensor[float32]
	logitsTensor  *ort.Tensor[float32]
	featureTensor *ort.Tensor[float32]
	featC         int
	featH         int
	featW         int
}

func newONNXHandle(modelPath, metadataPath string) (*onnxHandle, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaFile, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if len(meta.Classes) == 0 {
		return nil, fmt.Errorf("metadata lists no classes")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	logitsTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.LogitsShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create logits tensor: %w", err)
	}

	h := &onnxHandle{meta: meta, inputTensor: inputTensor, logitsTensor: logitsTensor}

	outputNames := []string{"logits"}
	outputs := []ort.ArbitraryTensor{logitsTensor}

	// The feature output is optional: an artifact exported without it still
	// predicts, but cannot drive saliency.
	if len(meta.FeatureShape) == 4 {
		featureTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.FeatureShape...))
		if err != nil {
			inputTensor.Destroy()
			logitsTensor.Destroy()
			return nil, fmt.Errorf("failed to create feature tensor: %w", err)
		}
		h.featureTensor = featureTensor
		h.featC = int(meta.FeatureShape[1])
		h.featH = int(meta.FeatureShape[2])
		h.featW = int(meta.FeatureShape[3])
		outputNames = append(outputNames, "features")
		outputs = append(outputs, featureTensor)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, outputNames,
		[]ort.ArbitraryTensor{inputTensor}, outputs,
		nil)
	if err != nil {
		h.destroyTensors()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	h.session = session

	return h, nil
}

func (h *onnxHandle) Classes() []string { return h.meta.Classes }

func (h *onnxHandle) run(input []float32) ([]float32, []float32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	copy(h.inputTensor.GetData(), input)
	if err := h.session.Run(); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}

	logits := make([]float32, len(h.logitsTensor.GetData()))
	copy(logits, h.logitsTensor.GetData())

	var features []float32
	if h.featureTensor != nil {
		features = make([]float32, len(h.featureTensor.GetData()))
		copy(features, h.featureTensor.GetData())
	}
	return logits, features, nil
}

func (h *onnxHandle) Predict(input []float32) (*Prediction, error) {
	logits, _, err := h.run(input)
	if err != nil {
		return nil, err
	}
	return newPrediction(h.meta.Classes, logits), nil
}

func (h *onnxHandle) FeatureForward(input []float32) ([]float32, *FeatureMap, error) {
	if h.featureTensor == nil {
		return nil, nil, ErrNoFeatureMap
	}
	logits, features, err := h.run(input)
	if err != nil {
		return nil, nil, err
	}
	return logits, &FeatureMap{
		Channels: h.featC,
		Height:   h.featH,
		Width:    h.featW,
		Data:     features,
	}, nil
}

// ClassWeights returns the gradient of the class score with respect to the
// final conv activation, reduced over spatial dimensions. The exported head
// is global-average-pool followed by a linear layer, for which that gradient
// is constant: head_weights[class][ch] / (H*W).
func (h *onnxHandle) ClassWeights(classIndex int) ([]float32, error) {
	if h.featureTensor == nil || len(h.meta.HeadWeights) == 0 {
		return nil, ErrNoFeatureMap
	}
	if classIndex < 0 || classIndex >= len(h.meta.HeadWeights) {
		return nil, fmt.Errorf("class index %d out of range", classIndex)
	}
	row := h.meta.HeadWeights[classIndex]
	if len(row) != h.featC {
		return nil, fmt.Errorf("head weights have %d channels, feature map has %d", len(row), h.featC)
	}
	area := float32(h.featH * h.featW)
	weights := make([]float32, h.featC)
	for i, w := range row {
		weights[i] = w / area
	}
	return weights, nil
}

func (h *onnxHandle) destroyTensors() {
	if h.inputTensor != nil {
		h.inputTensor.Destroy()
	}
	if h.logitsTensor != nil {
		h.logitsTensor.Destroy()
	}
	if h.featureTensor != nil {
		h.featureTensor.Destroy()
	}
}

func (h *onnxHandle) Close() {
	h.destroyTensors()
	if h.session != nil {
		h.session.Destroy()
	}
	ort.DestroyEnvironment()
}
