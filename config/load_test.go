package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPipelineParams(t *testing.T) {
	params := DefaultPipelineParams()
	assert.Equal(t, *DefaultRetinaFaceParams, *params.RetinaFace)
	assert.Equal(t, *DefaultArcFaceParams, *params.ArcFace)

	// Mutating the returned params must not touch the package defaults.
	params.ArcFace.ModelName = "mutated"
	assert.Equal(t, "arcface_resnet18", DefaultArcFaceParams.ModelName)
}

func TestLoadPipelineParams(t *testing.T) {
	fPath := filepath.Join(t.TempDir(), "params.json")
	content := `{
		"arcface": {"model_name": "arcface_resnet50", "img_size": 112, "embedding_dim": 512, "precision": 1},
		"optical_flow": {"model_name": "gma_sintel", "upsample": 2.0}
	}`
	assert.NoError(t, os.WriteFile(fPath, []byte(content), 0o644))

	params, err := LoadPipelineParams(fPath)
	assert.NoError(t, err)

	assert.Equal(t, "arcface_resnet50", params.ArcFace.ModelName)
	assert.Equal(t, 112, params.ArcFace.ImgSize)
	assert.Equal(t, PrecisionFP16, params.ArcFace.Precision)
	assert.Equal(t, "gma_sintel", params.OpticalFlow.ModelName)
	assert.Equal(t, 2.0, params.OpticalFlow.Upsample)

	// Absent sections come back as defaults.
	assert.Equal(t, *DefaultRetinaFaceParams, *params.RetinaFace)
	assert.Equal(t, *DefaultCLIPParams, *params.CLIP)
	assert.Equal(t, *DefaultDINOParams, *params.DINO)

	// Defaults stay pristine after the overlay.
	assert.Equal(t, "arcface_resnet18", DefaultArcFaceParams.ModelName)
}

func TestLoadPipelineParams_Errors(t *testing.T) {
	_, err := LoadPipelineParams(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	fPath := filepath.Join(t.TempDir(), "bad.json")
	assert.NoError(t, os.WriteFile(fPath, []byte("{not json"), 0o644))
	_, err = LoadPipelineParams(fPath)
	assert.Error(t, err)
}
