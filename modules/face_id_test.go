package modules

import (
	"testing"

	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func TestArcFaceClient_InputSize(t *testing.T) {
	client := &ArcFaceClient{ModelParams: config.DefaultArcFaceParams}
	assert.Equal(t, 128, client.InputSize())
}

func TestArcFaceClient_EmbedCrops_RejectsBadShapes(t *testing.T) {
	client := &ArcFaceClient{ModelParams: config.DefaultArcFaceParams}

	rgb := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 3, 128, 128),
		tensor.WithBacking(make([]float32, 3*128*128)),
	)
	_, err := client.EmbedCrops(rgb)
	assert.Error(t, err)

	wrongSize := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 1, 64, 64),
		tensor.WithBacking(make([]float32, 64*64)),
	)
	_, err = client.EmbedCrops(wrongSize)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "128x128")
}
