package modules

import (
	"image"

	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/okieraised/go-diffusion-eval/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// CLIPEvalClient scores generated image sets with the CLIP image and text
// encoders served by Triton. The text encoder is an ensemble with a
// server-side tokenizer and takes the raw prompt string.
type CLIPEvalClient struct {
	tritonClient     *gotritonclient.TritonGRPCClient
	ModelParams      *config.CLIPParams
	ImageModelConfig *triton_proto.ModelConfigResponse
	TextModelConfig  *triton_proto.ModelConfigResponse
}

func NewCLIPEvalClient(triton *gotritonclient.TritonGRPCClient, cfg *config.CLIPParams) (*CLIPEvalClient, error) {

	imageConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ImageModelName, "")
	if err != nil {
		return nil, err
	}
	textConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.TextModelName, "")
	if err != nil {
		return nil, err
	}

	return &CLIPEvalClient{
		tritonClient:     triton,
		ModelParams:      cfg,
		ImageModelConfig: imageConfig,
		TextModelConfig:  textConfig,
	}, nil
}

// preprocessImage resizes one RGB image and applies the encoder's
// channel-wise normalization, producing a (1, 3, S, S) tensor.
func preprocessImage(img gocv.Mat, imgSize int, mean, std [3]float64) (*tensor.Dense, error) {
	resizedImg := gocv.NewMat()
	defer resizedImg.Close()
	gocv.Resize(img, &resizedImg, image.Point{X: imgSize, Y: imgSize}, 0.0, 0.0, gocv.InterpolationLinear)

	imgTensors := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 3, imgSize, imgSize),
	)
	for z := range 3 {
		for y := range imgSize {
			for x := range imgSize {
				err := imgTensors.SetAt((float32(resizedImg.GetVecbAt(y, x)[z])-float32(mean[z]))/float32(std[z]), 0, z, y, x)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return imgTensors, nil
}

// encodeImage runs one preprocessed image through an encoder model and
// returns its embedding row.
func encodeImage(triton *gotritonclient.TritonGRPCClient, modelName string, modelConfig *triton_proto.ModelConfigResponse, params *config.CLIPParams, input *tensor.Dense) ([]float32, error) {
	inputCfg := modelConfig.Config.Input[0]
	shape := input.Shape()
	modelRequest := &triton_proto.ModelInferRequest{
		ModelName: modelName,
		Inputs: []*triton_proto.ModelInferRequest_InferInputTensor{
			{
				Name:     inputCfg.Name,
				Datatype: inputCfg.DataType.String()[5:],
				Shape:    []int64{1, 3, int64(shape[2]), int64(shape[3])},
				Contents: &triton_proto.InferTensorContents{
					Fp32Contents: input.Float32s(),
				},
			},
		},
	}

	inferResp, err := triton.ModelGRPCInfer(params.Timeout, modelRequest)
	if err != nil {
		return nil, err
	}
	if len(inferResp.RawOutputContents) == 0 {
		return nil, errors.Errorf("%s returned no output contents", modelName)
	}
	raw := utils.BytesToT32[float32](inferResp.RawOutputContents[0])
	embedding := make([]float32, len(raw))
	copy(embedding, raw)
	return embedding, nil
}

// EncodeImages embeds every image and returns a (N, D) matrix.
func (c *CLIPEvalClient) EncodeImages(imgs []gocv.Mat) (*tensor.Dense, error) {
	if len(imgs) == 0 {
		return nil, errors.New("empty image set")
	}

	bar := progressbar.Default(int64(len(imgs)), "clip encode")
	rows := make([][]float32, 0, len(imgs))
	for _, img := range imgs {
		input, err := preprocessImage(img, c.ModelParams.ImgSize, c.ModelParams.Mean, c.ModelParams.STD)
		if err != nil {
			return nil, err
		}
		embedding, err := encodeImage(c.tritonClient, c.ModelParams.ImageModelName, c.ImageModelConfig, c.ModelParams, input)
		if err != nil {
			return nil, err
		}
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

// EncodeText embeds a prompt string via the tokenizer ensemble.
func (c *CLIPEvalClient) EncodeText(prompt string) (*tensor.Dense, error) {
	inputCfg := c.TextModelConfig.Config.Input[0]
	modelRequest := &triton_proto.ModelInferRequest{
		ModelName: c.ModelParams.TextModelName,
		Inputs: []*triton_proto.ModelInferRequest_InferInputTensor{
			{
				Name:     inputCfg.Name,
				Datatype: "BYTES",
				Shape:    []int64{1},
				Contents: &triton_proto.InferTensorContents{
					BytesContents: [][]byte{[]byte(prompt)},
				},
			},
		},
	}

	inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
	if err != nil {
		return nil, err
	}
	if len(inferResp.RawOutputContents) == 0 {
		return nil, errors.New("text encoder returned no output contents")
	}
	raw := utils.BytesToT32[float32](inferResp.RawOutputContents[0])
	embedding := make([]float32, len(raw))
	copy(embedding, raw)

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(embedding)),
		tensor.WithBacking(embedding),
	), nil
}

// EvaluateImageSets computes the mean pairwise image similarity between the
// sample and reference sets, and the mean similarity of the samples to the
// prompt.
func (c *CLIPEvalClient) EvaluateImageSets(sampleImgs, refImgs []gocv.Mat, prompt string) (float32, float32, error) {

	sampleEmb, err := c.EncodeImages(sampleImgs)
	if err != nil {
		return 0, 0, err
	}
	refEmb, err := c.EncodeImages(refImgs)
	if err != nil {
		return 0, 0, err
	}

	simImage, err := utils.MeanPairwiseCosine(sampleEmb, refEmb)
	if err != nil {
		return 0, 0, err
	}

	textEmb, err := c.EncodeText(prompt)
	if err != nil {
		return 0, 0, err
	}

	var simTextTotal float64
	n := sampleEmb.Shape()[0]
	for i := 0; i < n; i++ {
		row, err := utils.RowSlice(sampleEmb, i)
		if err != nil {
			return 0, 0, err
		}
		sim, err := utils.CosineSimilarity(row, textEmb)
		if err != nil {
			return 0, 0, err
		}
		simTextTotal += float64(sim)
	}

	return simImage, float32(simTextTotal / float64(n)), nil
}
