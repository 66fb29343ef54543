package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func TestFaceBox(t *testing.T) {
	box := FaceBox{X1: 10, Y1: 20, X2: 40, Y2: 80}
	assert.Equal(t, 30, box.Width())
	assert.Equal(t, 60, box.Height())
	assert.Equal(t, 1800, box.Area())
}

func TestSize(t *testing.T) {
	size := Size{Width: 640, Height: 480}
	assert.Equal(t, 640, size.Max())
	assert.Equal(t, 480, size.Min())

	square := Size{Width: 100, Height: 100}
	assert.Equal(t, 100, square.Max())
	assert.Equal(t, 100, square.Min())
}

func TestFaceCropResultEmpty(t *testing.T) {
	empty := &FaceCropResult{FailedIndices: []int{0, 1}}
	assert.True(t, empty.Empty())

	nonEmpty := &FaceCropResult{
		FgCrops: tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(1, 3, 2, 2)),
	}
	assert.False(t, nonEmpty.Empty())
}

func TestEmbedResultEmpty(t *testing.T) {
	assert.True(t, (&EmbedResult{}).Empty())
	assert.False(t, (&EmbedResult{
		FgEmbeddings: tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(1, 4)),
	}).Empty())
}

func TestAlignLossResultFailed(t *testing.T) {
	assert.False(t, (&AlignLossResult{AlignLoss: 0.2}).Failed())
	assert.True(t, (&AlignLossResult{RefFailedIndices: []int{0}}).Failed())
	assert.True(t, (&AlignLossResult{GenFailedIndices: []int{2}}).Failed())
}

func TestPrecisionString(t *testing.T) {
	assert.Equal(t, "FP32", PrecisionFP32.String())
	assert.Equal(t, "FP16", PrecisionFP16.String())
}
