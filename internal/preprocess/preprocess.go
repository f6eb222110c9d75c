package preprocess

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
)

// Fixed transform constants, shared by inference and saliency. Mean and std
// are the ImageNet per-channel statistics the backbone was trained with.
const Size = 224

var (
	Mean = [3]float32{0.485, 0.456, 0.406}
	Std  = [3]float32{0.229, 0.224, 0.225}
)

// Tensor is a normalized CHW float32 image representation.
type Tensor struct {
	Data     []float32
	Channels int
	Height   int
	Width    int
}

// Preprocess decodes the image at path and returns the model input tensor.
func Preprocess(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage resizes to Size x Size, scales pixels to [0,1] and normalizes
// per channel. Deterministic: the same image always yields the same tensor.
// Any decoded color mode is accepted; sampling through RGBA() forces RGB.
func FromImage(img image.Image) *Tensor {
	resized := resize.Resize(Size, Size, img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	data := make([]float32, 3*width*height)
	plane := width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			idx := y*width + x
			data[idx] = (float32(r)/65535.0 - Mean[0]) / Std[0]
			data[plane+idx] = (float32(g)/65535.0 - Mean[1]) / Std[1]
			data[2*plane+idx] = (float32(b)/65535.0 - Mean[2]) / Std[2]
		}
	}

	return &Tensor{Data: data, Channels: 3, Height: height, Width: width}
}
