package modules

import (
	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/okieraised/go-diffusion-eval/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ArcFaceClient runs the frozen ArcFace identity backbone on Triton. The
// numeric precision of the forward pass is fixed at construction.
type ArcFaceClient struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelParams  *config.ArcFaceParams
	ModelConfig  *triton_proto.ModelConfigResponse
}

func NewArcFaceClient(triton *gotritonclient.TritonGRPCClient, cfg *config.ArcFaceParams) (*ArcFaceClient, error) {

	inferenceConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	return &ArcFaceClient{
		tritonClient: triton,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
	}, nil
}

// InputSize is the spatial resolution of the grayscale crops the backbone
// expects.
func (c *ArcFaceClient) InputSize() int {
	return c.ModelParams.ImgSize
}

// EmbedCrops maps a (N, 1, S, S) grayscale crop batch in [-1, 1] to a (N, D)
// embedding matrix, one row per crop, in order.
func (c *ArcFaceClient) EmbedCrops(grays *tensor.Dense) (*tensor.Dense, error) {
	shape := grays.Shape()
	if len(shape) != 4 || shape[1] != 1 {
		return nil, errors.Errorf("expected a (N, 1, S, S) tensor, got shape %v", shape)
	}
	if shape[2] != c.ModelParams.ImgSize || shape[3] != c.ModelParams.ImgSize {
		return nil, errors.Errorf("expected %dx%d crops, got %dx%d", c.ModelParams.ImgSize, c.ModelParams.ImgSize, shape[2], shape[3])
	}

	n := shape[0]
	planeSize := shape[2] * shape[3]
	data := grays.Float32s()

	rows := make([]*tensor.Dense, 0, n)
	for idx := range n {
		instance := data[idx*planeSize : (idx+1)*planeSize]

		modelRequest := &triton_proto.ModelInferRequest{
			ModelName: c.ModelParams.ModelName,
		}
		inputCfg := c.ModelConfig.Config.Input[0]
		modelInput := &triton_proto.ModelInferRequest_InferInputTensor{
			Name:     inputCfg.Name,
			Datatype: c.ModelParams.Precision.String(),
			Shape:    []int64{1, 1, int64(shape[2]), int64(shape[3])},
		}
		if c.ModelParams.Precision == config.PrecisionFP16 {
			modelRequest.RawInputContents = [][]byte{utils.Float32sToFP16Bytes(instance)}
		} else {
			modelInput.Contents = &triton_proto.InferTensorContents{
				Fp32Contents: instance,
			}
		}
		modelRequest.Inputs = []*triton_proto.ModelInferRequest_InferInputTensor{modelInput}

		inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
		if err != nil {
			return nil, err
		}
		if len(inferResp.RawOutputContents) == 0 {
			return nil, errors.New("embedder returned no output contents")
		}

		var embedding []float32
		switch inferResp.GetOutputs()[0].Datatype {
		case "FP16":
			embedding = utils.FP16BytesToFloat32s(inferResp.RawOutputContents[0])
		default:
			raw := utils.BytesToT32[float32](inferResp.RawOutputContents[0])
			embedding = make([]float32, len(raw))
			copy(embedding, raw)
		}
		if len(embedding) != c.ModelParams.EmbeddingDim {
			return nil, errors.Errorf("embedder returned %d values, expected %d", len(embedding), c.ModelParams.EmbeddingDim)
		}

		rows = append(rows, tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(1, c.ModelParams.EmbeddingDim),
			tensor.WithBacking(embedding),
		))
	}

	if len(rows) == 1 {
		return rows[0], nil
	}
	return rows[0].Concat(0, rows[1:]...)
}
