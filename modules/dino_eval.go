package modules

import (
	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/okieraised/go-diffusion-eval/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// DINOEvalClient scores image sets with a self-supervised ViT encoder.
// Unlike CLIP it has no text tower; sets are compared through their mean
// embeddings.
type DINOEvalClient struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelParams  *config.DINOParams
	ModelConfig  *triton_proto.ModelConfigResponse
}

func NewDINOEvalClient(triton *gotritonclient.TritonGRPCClient, cfg *config.DINOParams) (*DINOEvalClient, error) {

	inferenceConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	return &DINOEvalClient{
		tritonClient: triton,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
	}, nil
}

// EncodeImages embeds every image and returns a (N, D) matrix.
func (c *DINOEvalClient) EncodeImages(imgs []gocv.Mat) (*tensor.Dense, error) {
	if len(imgs) == 0 {
		return nil, errors.New("empty image set")
	}

	bar := progressbar.Default(int64(len(imgs)), "dino encode")
	rows := make([][]float32, 0, len(imgs))
	for _, img := range imgs {
		input, err := preprocessImage(img, c.ModelParams.ImgSize, c.ModelParams.Mean, c.ModelParams.STD)
		if err != nil {
			return nil, err
		}

		inputCfg := c.ModelConfig.Config.Input[0]
		modelRequest := &triton_proto.ModelInferRequest{
			ModelName: c.ModelParams.ModelName,
			Inputs: []*triton_proto.ModelInferRequest_InferInputTensor{
				{
					Name:     inputCfg.Name,
					Datatype: inputCfg.DataType.String()[5:],
					Shape:    []int64{1, 3, int64(c.ModelParams.ImgSize), int64(c.ModelParams.ImgSize)},
					Contents: &triton_proto.InferTensorContents{
						Fp32Contents: input.Float32s(),
					},
				},
			},
		}

		inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
		if err != nil {
			return nil, err
		}
		if len(inferResp.RawOutputContents) == 0 {
			return nil, errors.New("dino encoder returned no output contents")
		}
		raw := utils.BytesToT32[float32](inferResp.RawOutputContents[0])
		embedding := make([]float32, len(raw))
		copy(embedding, raw)
		rows = append(rows, embedding)
		_ = bar.Add(1)
	}

	dim := len(rows[0])
	backing := make([]float32, 0, len(rows)*dim)
	for idx, row := range rows {
		if len(row) != dim {
			return nil, errors.Errorf("embedding %d has %d values, expected %d", idx, len(row), dim)
		}
		backing = append(backing, row...)
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(rows), dim),
		tensor.WithBacking(backing),
	), nil
}

// ImageSetSimilarity is the cosine similarity between the mean embeddings of
// the two image sets.
func (c *DINOEvalClient) ImageSetSimilarity(refImgs, sampleImgs []gocv.Mat) (float32, error) {

	refEmb, err := c.EncodeImages(refImgs)
	if err != nil {
		return 0, err
	}
	sampleEmb, err := c.EncodeImages(sampleImgs)
	if err != nil {
		return 0, err
	}

	refMean, err := utils.MeanEmbedding(refEmb)
	if err != nil {
		return 0, err
	}
	sampleMean, err := utils.MeanEmbedding(sampleEmb)
	if err != nil {
		return 0, err
	}
	return utils.CosineSimilarity(refMean, sampleMean)
}
