package modules

import (
	"testing"

	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestPreprocessImage(t *testing.T) {
	img := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer img.Close()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetUCharAt(y, x*3, 200)
			img.SetUCharAt(y, x*3+1, 100)
			img.SetUCharAt(y, x*3+2, 50)
		}
	}

	params := config.DefaultCLIPParams
	out, err := preprocessImage(img, 4, params.Mean, params.STD)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4, 4}, []int(out.Shape()))

	rVal, err := out.At(0, 0, 0, 0)
	assert.NoError(t, err)
	assert.InDelta(t, (200.0-params.Mean[0])/params.STD[0], float64(rVal.(float32)), 1e-4)

	gVal, err := out.At(0, 1, 2, 2)
	assert.NoError(t, err)
	assert.InDelta(t, (100.0-params.Mean[1])/params.STD[1], float64(gVal.(float32)), 1e-4)

	bVal, err := out.At(0, 2, 3, 3)
	assert.NoError(t, err)
	assert.InDelta(t, (50.0-params.Mean[2])/params.STD[2], float64(bVal.(float32)), 1e-4)
}
