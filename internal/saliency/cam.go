package saliency

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/darainlabs/neuroscan/internal/model"
	"github.com/darainlabs/neuroscan/internal/preprocess"
)

// Blend ratio for the overlay: the original scan stays dominant.
const (
	originalWeight = 0.6
	heatWeight     = 0.4
)

const normEpsilon = 1e-8

// Generate computes a class-activation heatmap for the image at imagePath and
// writes the blended overlay to outPath. A negative classIndex selects the
// model's own top prediction for this image.
func Generate(h model.Handle, imagePath string, classIndex int, outPath string) error {
	orig, err := imaging.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	t := preprocess.FromImage(orig)
	logits, fm, err := h.FeatureForward(t.Data)
	if err != nil {
		return fmt.Errorf("feature forward pass: %w", err)
	}

	if classIndex < 0 {
		classIndex = 0
		for i, v := range logits {
			if v > logits[classIndex] {
				classIndex = i
			}
		}
	}

	weights, err := h.ClassWeights(classIndex)
	if err != nil {
		return fmt.Errorf("class weights: %w", err)
	}
	if len(weights) != fm.Channels {
		return fmt.Errorf("got %d channel weights for %d channels", len(weights), fm.Channels)
	}

	cam := activationMap(fm, weights)
	normalizeMap(cam)

	overlay := renderOverlay(orig, cam, fm.Height, fm.Width)
	if err := imaging.Save(overlay, outPath); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	return nil
}

// activationMap forms the weighted sum of activation channels and clips
// negative values to zero: only positive contributions matter.
func activationMap(fm *model.FeatureMap, weights []float32) []float32 {
	cam := make([]float32, fm.Height*fm.Width)
	for c := 0; c < fm.Channels; c++ {
		w := weights[c]
		plane := fm.Data[c*fm.Height*fm.Width : (c+1)*fm.Height*fm.Width]
		for i, v := range plane {
			cam[i] += w * v
		}
	}
	for i, v := range cam {
		if v < 0 {
			cam[i] = 0
		}
	}
	return cam
}

// normalizeMap scales the map to [0,1] in place. A uniform map (min == max)
// becomes all zeros rather than dividing by zero.
func normalizeMap(cam []float32) {
	if len(cam) == 0 {
		return
	}
	min, max := cam[0], cam[0]
	for _, v := range cam[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	for i := range cam {
		cam[i] = (cam[i] - min) / (span + normEpsilon)
	}
}

// renderOverlay upsamples the map to the original resolution, maps it through
// a jet palette and alpha-blends it with the original image.
func renderOverlay(orig image.Image, cam []float32, camH, camW int) image.Image {
	gray := image.NewGray(image.Rect(0, 0, camW, camH))
	for i, v := range cam {
		gray.Pix[i] = uint8(v * 255)
	}

	b := orig.Bounds()
	heat := imaging.Resize(gray, b.Dx(), b.Dy(), imaging.Linear)

	out := imaging.Clone(orig)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := float64(heat.NRGBAAt(x, y).R) / 255.0
			hr, hg, hb := jet(v)
			p := out.NRGBAAt(x, y)
			out.SetNRGBA(x, y, color.NRGBA{
				R: blend(p.R, hr),
				G: blend(p.G, hg),
				B: blend(p.B, hb),
				A: 255,
			})
		}
	}
	return out
}

func blend(orig, heat uint8) uint8 {
	return uint8(originalWeight*float64(orig) + heatWeight*float64(heat))
}

// jet maps [0,1] to the classic blue-cyan-yellow-red heat palette.
func jet(v float64) (r, g, b uint8) {
	clamp := func(x float64) float64 {
		if x < 0 {
			return 0
		}
		if x > 1 {
			return 1
		}
		return x
	}
	abs := func(x float64) float64 {
		if x < 0 {
			return -x
		}
		return x
	}
	r = uint8(clamp(1.5-abs(4*v-3)) * 255)
	g = uint8(clamp(1.5-abs(4*v-2)) * 255)
	b = uint8(clamp(1.5-abs(4*v-1)) * 255)
	return
}
