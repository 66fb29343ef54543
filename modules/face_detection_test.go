package modules

import (
	"testing"

	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func genDetectorOutputs(count int32, boxes [][]float32, scores []float32) []*tensor.Dense {
	boxBacking := make([]float32, 0, len(boxes)*4)
	for _, b := range boxes {
		boxBacking = append(boxBacking, b...)
	}
	return []*tensor.Dense{
		tensor.New(
			tensor.WithShape(1, 1),
			tensor.WithBacking([]int32{count}),
		),
		tensor.New(
			tensor.WithShape(1, len(boxes), 4),
			tensor.WithBacking(boxBacking),
		),
		tensor.New(
			tensor.WithShape(1, len(scores)),
			tensor.WithBacking(scores),
		),
	}
}

func TestPostprocess(t *testing.T) {
	client := &RetinaFaceClient{ModelParams: config.DefaultRetinaFaceParams}

	// Boxes normalized by the longer image side.
	outputs := genDetectorOutputs(2,
		[][]float32{
			{0.1, 0.1, 0.3, 0.4},
			{0.5, 0.2, 0.7, 0.5},
		},
		[]float32{0.9, 0.3},
	)

	detections, err := client.postprocess(outputs, config.Size{Width: 200, Height: 100})
	assert.NoError(t, err)

	// The second hit is below the 0.5 confidence threshold.
	assert.Len(t, detections, 1)
	assert.Equal(t, config.FaceBox{X1: 20, Y1: 20, X2: 60, Y2: 80}, detections[0].Box)
	assert.Equal(t, float32(0.9), detections[0].Score)
}

func TestPostprocess_CountCapsDetections(t *testing.T) {
	client := &RetinaFaceClient{ModelParams: config.DefaultRetinaFaceParams}

	// Three score slots, but the detector reports only one valid hit.
	outputs := genDetectorOutputs(1,
		[][]float32{
			{0.0, 0.0, 0.2, 0.2},
			{0.4, 0.4, 0.6, 0.6},
			{0.7, 0.7, 0.9, 0.9},
		},
		[]float32{0.8, 0.8, 0.8},
	)

	detections, err := client.postprocess(outputs, config.Size{Width: 100, Height: 100})
	assert.NoError(t, err)
	assert.Len(t, detections, 1)
}

func TestPostprocess_ClampsToImageBounds(t *testing.T) {
	client := &RetinaFaceClient{ModelParams: config.DefaultRetinaFaceParams}

	// Boxes normalized by the 200px width spill past the 100px height.
	outputs := genDetectorOutputs(1,
		[][]float32{{0.0, 0.4, 0.5, 0.9}},
		[]float32{0.95},
	)

	detections, err := client.postprocess(outputs, config.Size{Width: 200, Height: 100})
	assert.NoError(t, err)
	assert.Len(t, detections, 1)
	assert.Equal(t, config.FaceBox{X1: 0, Y1: 80, X2: 100, Y2: 100}, detections[0].Box)
}

func TestPostprocess_TooFewOutputs(t *testing.T) {
	client := &RetinaFaceClient{ModelParams: config.DefaultRetinaFaceParams}
	_, err := client.postprocess(nil, config.Size{Width: 100, Height: 100})
	assert.Error(t, err)
}
