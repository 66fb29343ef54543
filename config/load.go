package config

import (
	"os"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// PipelineParams groups the per-model parameters of one pipeline instance.
// Absent sections fall back to the package defaults.
type PipelineParams struct {
	RetinaFace  *RetinaFaceParams  `json:"retinaface"`
	ArcFace     *ArcFaceParams     `json:"arcface"`
	OpticalFlow *OpticalFlowParams `json:"optical_flow"`
	CLIP        *CLIPParams        `json:"clip"`
	DINO        *DINOParams        `json:"dino"`
}

// DefaultPipelineParams copies the package defaults so an overlay cannot
// mutate them.
func DefaultPipelineParams() *PipelineParams {
	retinaFace := *DefaultRetinaFaceParams
	arcFace := *DefaultArcFaceParams
	opticalFlow := *DefaultOpticalFlowParams
	clip := *DefaultCLIPParams
	dino := *DefaultDINOParams
	return &PipelineParams{
		RetinaFace:  &retinaFace,
		ArcFace:     &arcFace,
		OpticalFlow: &opticalFlow,
		CLIP:        &clip,
		DINO:        &dino,
	}
}

// LoadPipelineParams reads a JSON params file and overlays it on the defaults.
func LoadPipelineParams(fPath string) (*PipelineParams, error) {
	content, err := os.ReadFile(fPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read params file %s", fPath)
	}

	params := DefaultPipelineParams()
	if err := sonic.Unmarshal(content, params); err != nil {
		return nil, errors.Wrapf(err, "failed to parse params file %s", fPath)
	}
	fallback := DefaultPipelineParams()
	if params.RetinaFace == nil {
		params.RetinaFace = fallback.RetinaFace
	}
	if params.ArcFace == nil {
		params.ArcFace = fallback.ArcFace
	}
	if params.OpticalFlow == nil {
		params.OpticalFlow = fallback.OpticalFlow
	}
	if params.CLIP == nil {
		params.CLIP = fallback.CLIP
	}
	if params.DINO == nil {
		params.DINO = fallback.DINO
	}
	return params, nil
}
