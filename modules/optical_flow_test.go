package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

func genFlowField(h, w int, dx, dy float32) *tensor.Dense {
	backing := make([]float32, h*w*2)
	for i := 0; i < h*w; i++ {
		backing[i*2] = dx
		backing[i*2+1] = dy
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(h, w, 2),
		tensor.WithBacking(backing),
	)
}

func TestNegateFlow(t *testing.T) {
	flow := genFlowField(2, 2, 1.5, -0.5)
	negated, err := NegateFlow(flow)
	assert.NoError(t, err)

	vals := negated.Float32s()
	assert.Equal(t, float32(-1.5), vals[0])
	assert.Equal(t, float32(0.5), vals[1])
	// Source field is untouched.
	assert.Equal(t, float32(1.5), flow.Float32s()[0])
}

func TestBackwardWarpByFlow_ZeroFlowIsIdentity(t *testing.T) {
	img := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer img.Close()
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetUCharAt(y, x*3, uint8(y*40+x*10))
		}
	}

	warped, err := BackwardWarpByFlow(img, genFlowField(4, 4, 0, 0))
	assert.NoError(t, err)
	defer warped.Close()

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, img.GetUCharAt(y, x*3), warped.GetUCharAt(y, x*3))
		}
	}
}

func TestBackwardWarpByFlow_UnitShift(t *testing.T) {
	img := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer img.Close()
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetUCharAt(y, x*3, uint8(100+x*10))
		}
	}

	// dx = 1 samples each output pixel from one column to the right.
	warped, err := BackwardWarpByFlow(img, genFlowField(4, 4, 1, 0))
	assert.NoError(t, err)
	defer warped.Close()

	for y := 0; y < 4; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, img.GetUCharAt(y, (x+1)*3), warped.GetUCharAt(y, x*3))
		}
	}
}

func TestBackwardWarpByFlow_ShapeMismatch(t *testing.T) {
	img := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err := BackwardWarpByFlow(img, genFlowField(2, 2, 0, 0))
	assert.Error(t, err)
}
