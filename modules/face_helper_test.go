package modules

import (
	"testing"

	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func TestExpandBox(t *testing.T) {
	box := config.FaceBox{X1: 10, Y1: 12, X2: 30, Y2: 40}
	expanded := ExpandBox(box, 2, 100, 100)
	assert.Equal(t, config.FaceBox{X1: 8, Y1: 10, X2: 32, Y2: 42}, expanded)

	// Bleed past the image bounds clamps.
	nearEdge := config.FaceBox{X1: 1, Y1: 0, X2: 99, Y2: 100}
	clamped := ExpandBox(nearEdge, 5, 100, 100)
	assert.Equal(t, config.FaceBox{X1: 0, Y1: 0, X2: 100, Y2: 100}, clamped)
}

func TestCropInstance(t *testing.T) {
	backing := make([]float32, 2*3*4*4)
	for i := range backing {
		backing[i] = float32(i)
	}
	images := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(2, 3, 4, 4),
		tensor.WithBacking(backing),
	)

	crop, err := CropInstance(images, 1, config.FaceBox{X1: 1, Y1: 2, X2: 3, Y2: 4})
	assert.NoError(t, err)
	assert.Equal(t, []int{3, 2, 2}, []int(crop.Shape()))

	// First crop value is images[1][0][2][1].
	want, err := images.At(1, 0, 2, 1)
	assert.NoError(t, err)
	got, err := crop.At(0, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = CropInstance(images, 0, config.FaceBox{X1: 2, Y1: 2, X2: 2, Y2: 4})
	assert.Error(t, err)
}

func TestGrayscaleLuma(t *testing.T) {
	// Pure red, pure green, pure blue pixels in a single instance.
	backing := []float32{
		255, 0, 0, // R plane
		0, 255, 0, // G plane
		0, 0, 255, // B plane
	}
	crops := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 3, 1, 3),
		tensor.WithBacking(backing),
	)

	gray, err := GrayscaleLuma(crops)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 3}, []int(gray.Shape()))

	vals := gray.Float32s()
	assert.InDelta(t, 255*0.299, vals[0], 1e-3)
	assert.InDelta(t, 255*0.587, vals[1], 1e-3)
	assert.InDelta(t, 255*0.114, vals[2], 1e-3)
}

func TestGrayscaleLuma_RejectsNonRGB(t *testing.T) {
	crops := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 1, 2, 2),
		tensor.WithBacking(make([]float32, 4)),
	)
	_, err := GrayscaleLuma(crops)
	assert.Error(t, err)
}

func TestResizeBilinearBatch_SameSize(t *testing.T) {
	backing := []float32{1, 2, 3, 4}
	crops := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 1, 2, 2),
		tensor.WithBacking(backing),
	)
	out, err := ResizeBilinearBatch(crops, 2)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, []int(out.Shape()))
	assert.Equal(t, backing, out.Float32s())
}

func TestStackCrops(t *testing.T) {
	genCrop := func(val float32) *tensor.Dense {
		backing := make([]float32, 3*2*2)
		for i := range backing {
			backing[i] = val
		}
		return tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(3, 2, 2),
			tensor.WithBacking(backing),
		)
	}

	single, err := StackCrops([]*tensor.Dense{genCrop(1)})
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2, 2}, []int(single.Shape()))

	stacked, err := StackCrops([]*tensor.Dense{genCrop(1), genCrop(2), genCrop(3)})
	assert.NoError(t, err)
	assert.Equal(t, []int{3, 3, 2, 2}, []int(stacked.Shape()))

	val, err := stacked.At(2, 0, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, float32(3), val)

	_, err = StackCrops(nil)
	assert.Error(t, err)
}
