package modules

import (
	"image"
	"image/color"

	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/okieraised/go-diffusion-eval/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// FlowEstimatorClient runs the GMA optical flow network on Triton. Frames
// are upsampled before inference and the predicted flow is downsampled (and
// rescaled) back to the source resolution.
type FlowEstimatorClient struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelParams  *config.OpticalFlowParams
	ModelConfig  *triton_proto.ModelConfigResponse
}

func NewFlowEstimatorClient(triton *gotritonclient.TritonGRPCClient, cfg *config.OpticalFlowParams) (*FlowEstimatorClient, error) {

	inferenceConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	return &FlowEstimatorClient{
		tritonClient: triton,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
	}, nil
}

// preprocessFrame upsamples one RGB frame and converts it to a raw-pixel
// float32 (1, 3, H, W) tensor. The flow network takes unnormalized pixels.
func (c *FlowEstimatorClient) preprocessFrame(img gocv.Mat) (*tensor.Dense, error) {
	dims := img.Size()
	h, w := dims[0], dims[1]
	upH := int(float64(h) * c.ModelParams.Upsample)
	upW := int(float64(w) * c.ModelParams.Upsample)

	resizedImg := gocv.NewMat()
	defer resizedImg.Close()
	gocv.Resize(img, &resizedImg, image.Point{X: upW, Y: upH}, 0.0, 0.0, gocv.InterpolationLinear)

	imgTensors := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 3, upH, upW),
	)
	for z := range 3 {
		for y := range upH {
			for x := range upW {
				err := imgTensors.SetAt(float32(resizedImg.GetVecbAt(y, x)[z]), 0, z, y, x)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return imgTensors, nil
}

// EstimateFlow predicts the dense optical flow from img1 to img2 and returns
// it as a (H, W, 2) tensor in source pixel units, channel order (dx, dy).
func (c *FlowEstimatorClient) EstimateFlow(img1, img2 gocv.Mat) (*tensor.Dense, error) {
	dims := img1.Size()
	if dims[0] != img2.Size()[0] || dims[1] != img2.Size()[1] {
		return nil, errors.Errorf("frame sizes differ: %v vs %v", img1.Size(), img2.Size())
	}
	h, w := dims[0], dims[1]

	frame1, err := c.preprocessFrame(img1)
	if err != nil {
		return nil, err
	}
	frame2, err := c.preprocessFrame(img2)
	if err != nil {
		return nil, err
	}

	if len(c.ModelConfig.Config.Input) < 2 {
		return nil, errors.Errorf("flow model exposes %d inputs, expected 2", len(c.ModelConfig.Config.Input))
	}

	modelRequest := &triton_proto.ModelInferRequest{
		ModelName: c.ModelParams.ModelName,
	}
	frames := []*tensor.Dense{frame1, frame2}
	modelInputs := make([]*triton_proto.ModelInferRequest_InferInputTensor, 0, 2)
	for idx, inputCfg := range c.ModelConfig.Config.Input[:2] {
		frameShape := frames[idx].Shape()
		modelInput := &triton_proto.ModelInferRequest_InferInputTensor{
			Name:     inputCfg.Name,
			Datatype: inputCfg.DataType.String()[5:],
			Shape:    []int64{1, 3, int64(frameShape[2]), int64(frameShape[3])},
			Contents: &triton_proto.InferTensorContents{
				Fp32Contents: frames[idx].Float32s(),
			},
		}
		modelInputs = append(modelInputs, modelInput)
	}
	modelRequest.Inputs = modelInputs

	inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
	if err != nil {
		return nil, err
	}
	if len(inferResp.RawOutputContents) == 0 {
		return nil, errors.New("flow model returned no output contents")
	}

	// The model predicts flow at the upsampled resolution. Bring it back to
	// the source grid and shrink the displacement magnitudes accordingly.
	outputShape := inferResp.GetOutputs()[0].Shape
	upH, upW := int(outputShape[len(outputShape)-2]), int(outputShape[len(outputShape)-1])
	flowData := utils.BytesToT32[float32](inferResp.RawOutputContents[0])
	if len(flowData) < 2*upH*upW {
		return nil, errors.Errorf("flow output holds %d values, expected %d", len(flowData), 2*upH*upW)
	}

	downScale := float32(1.0 / c.ModelParams.Upsample)
	out := make([]float32, h*w*2)
	for z := range 2 {
		plane, err := resizePlane(flowData[z*upH*upW:(z+1)*upH*upW], upH, upW, h, w)
		if err != nil {
			return nil, err
		}
		for i, v := range plane {
			out[i*2+z] = v * downScale
		}
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(h, w, 2),
		tensor.WithBacking(out),
	), nil
}

// NegateFlow flips the direction of every displacement vector.
func NegateFlow(flow *tensor.Dense) (*tensor.Dense, error) {
	negated, err := flow.Apply(func(x float32) float32 { return -x })
	if err != nil {
		return nil, err
	}
	return negated.(*tensor.Dense), nil
}

// BackwardWarpByFlow samples img at positions displaced by the (H, W, 2)
// flow field, recovering the frame the flow points away from. Out-of-bounds
// samples come out black.
func BackwardWarpByFlow(img gocv.Mat, flow *tensor.Dense) (gocv.Mat, error) {
	dims := img.Size()
	h, w := dims[0], dims[1]

	flowShape := flow.Shape()
	if len(flowShape) != 3 || flowShape[0] != h || flowShape[1] != w || flowShape[2] != 2 {
		return gocv.NewMat(), errors.Errorf("expected a (%d, %d, 2) flow tensor, got shape %v", h, w, flowShape)
	}

	flowData := flow.Float32s()
	mapXData := make([]float32, h*w)
	mapYData := make([]float32, h*w)
	for y := range h {
		for x := range w {
			mapXData[y*w+x] = float32(x) + flowData[(y*w+x)*2]
			mapYData[y*w+x] = float32(y) + flowData[(y*w+x)*2+1]
		}
	}

	mapX, err := gocv.NewMatWithSizesFromBytes([]int{h, w}, gocv.MatTypeCV32F, utils.T32ToBytes(mapXData))
	if err != nil {
		return gocv.NewMat(), err
	}
	defer mapX.Close()
	mapY, err := gocv.NewMatWithSizesFromBytes([]int{h, w}, gocv.MatTypeCV32F, utils.T32ToBytes(mapYData))
	if err != nil {
		return gocv.NewMat(), err
	}
	defer mapY.Close()

	warped := gocv.NewMat()
	gocv.Remap(img, &warped, &mapX, &mapY, gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return warped, nil
}
