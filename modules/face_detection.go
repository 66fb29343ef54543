package modules

import (
	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/okieraised/go-diffusion-eval/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// RetinaFaceClient runs the RetinaFace detector on Triton and turns its
// detections into foreground/background face crops.
type RetinaFaceClient struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelParams  *config.RetinaFaceParams
	ModelConfig  *triton_proto.ModelConfigResponse
}

func NewRetinaFaceClient(triton *gotritonclient.TritonGRPCClient, cfg *config.RetinaFaceParams) (*RetinaFaceClient, error) {

	inferenceConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	return &RetinaFaceClient{
		tritonClient: triton,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
	}, nil
}

// detection is one postprocessed detector hit in source pixel coordinates.
type detection struct {
	Box   config.FaceBox
	Score float32
}

// preprocessInstance converts one (3, H, W) instance in [-1, 1] into the
// detector input: ratio-preserving resize into the model dims, zero padded,
// detector mean/scale normalization applied.
func (c *RetinaFaceClient) preprocessInstance(img *tensor.Dense) (*tensor.Dense, error) {
	shape := img.Shape()
	imgH, imgW := shape[1], shape[2]
	modelH := int(c.ModelConfig.Config.Input[0].Dims[1])
	modelW := int(c.ModelConfig.Config.Input[0].Dims[2])

	imgRatio := float64(imgW) / float64(imgH)
	modelRatio := float64(modelW) / float64(modelH)

	var newWidth, newHeight int
	if imgRatio > modelRatio {
		newWidth = modelW
		newHeight = int(float64(newWidth) / imgRatio)
	} else {
		newHeight = modelH
		newWidth = int(float64(newHeight) * imgRatio)
	}

	data := img.Float32s()
	planeSize := imgH * imgW
	out := make([]float32, 3*modelH*modelW)
	for z := range 3 {
		// Back to raw pixel range before the detector's own normalization.
		raw := make([]float32, planeSize)
		for i, v := range data[z*planeSize : (z+1)*planeSize] {
			raw[i] = v*float32(utils.NormalizationScale) + float32(utils.NormalizationOffset)
		}
		resized, err := resizePlane(raw, imgH, imgW, newHeight, newWidth)
		if err != nil {
			return nil, err
		}
		for y := range newHeight {
			for x := range newWidth {
				out[z*modelH*modelW+y*modelW+x] = (resized[y*newWidth+x] - float32(c.ModelParams.Mean)) * float32(c.ModelParams.Scale)
			}
		}
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 3, modelH, modelW),
		tensor.WithBacking(out),
	), nil
}

// detectInstance runs detection on one (3, H, W) instance and returns hits
// above the confidence threshold, scaled back to source pixel coordinates.
func (c *RetinaFaceClient) detectInstance(img *tensor.Dense) ([]detection, error) {
	inputTensor, err := c.preprocessInstance(img)
	if err != nil {
		return nil, err
	}

	modelRequest := &triton_proto.ModelInferRequest{
		ModelName: c.ModelParams.ModelName,
	}
	modelInputs := make([]*triton_proto.ModelInferRequest_InferInputTensor, 0)
	for _, inputCfg := range c.ModelConfig.Config.Input {
		modelInput := &triton_proto.ModelInferRequest_InferInputTensor{
			Name:     inputCfg.Name,
			Datatype: inputCfg.DataType.String()[5:],
			Shape:    []int64{1, inputCfg.Dims[0], inputCfg.Dims[1], inputCfg.Dims[2]},
			Contents: &triton_proto.InferTensorContents{
				Fp32Contents: inputTensor.Float32s(),
			},
		}
		modelInputs = append(modelInputs, modelInput)
	}
	modelRequest.Inputs = modelInputs

	inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
	if err != nil {
		return nil, err
	}

	outputs := make([]*tensor.Dense, 0)
	for oIdx, output := range inferResp.GetOutputs() {
		outputShape := make([]int, 0, len(output.Shape))
		for _, shp := range output.Shape {
			outputShape = append(outputShape, int(shp))
		}
		var tensors *tensor.Dense
		switch output.Datatype {
		case "FP32":
			content := utils.BytesToT32[float32](inferResp.RawOutputContents[oIdx])
			tensors = tensor.New(
				tensor.Of(tensor.Float32),
				tensor.WithShape(outputShape...),
				tensor.WithBacking(content),
			)
		case "INT32":
			content := utils.BytesToT32[int32](inferResp.RawOutputContents[oIdx])
			tensors = tensor.New(
				tensor.Of(tensor.Int),
				tensor.WithShape(outputShape...),
				tensor.WithBacking(content),
			)
		}
		outputs = append(outputs, tensors)
	}

	shape := img.Shape()
	return c.postprocess(outputs, config.Size{Width: shape[2], Height: shape[1]})
}

// postprocess expects the detector ensemble outputs num_dets, boxes (x1, y1,
// x2, y2 normalized to the letterboxed input) and scores, and maps the boxes
// back onto the source image.
func (c *RetinaFaceClient) postprocess(rawOutputs []*tensor.Dense, size config.Size) ([]detection, error) {
	if len(rawOutputs) < 3 {
		return nil, errors.Errorf("detector returned %d outputs, expected at least 3", len(rawOutputs))
	}

	boxes, err := rawOutputs[1].Slice(tensor.S(0))
	if err != nil {
		return nil, err
	}
	scores, err := rawOutputs[2].Slice(tensor.S(0))
	if err != nil {
		return nil, err
	}

	numDets := scores.Size()
	if counts, ok := rawOutputs[0].Data().([]int32); ok && len(counts) > 0 && int(counts[0]) < numDets {
		numDets = int(counts[0])
	}

	scale := float32(size.Max())

	results := make([]detection, 0)
	for i := range numDets {
		score, err := scores.Slice(tensor.S(i))
		if err != nil {
			return nil, err
		}
		scoreVal := score.(*tensor.Dense).Float32s()[0]
		if scoreVal < c.ModelParams.ConfidenceThreshold {
			continue
		}

		box, err := boxes.Slice(tensor.S(i))
		if err != nil {
			return nil, err
		}
		coords := box.(*tensor.Dense).Float32s()
		faceBox := config.FaceBox{
			X1: clampLocation(int(coords[0]*scale), size.Width),
			Y1: clampLocation(int(coords[1]*scale), size.Height),
			X2: clampLocation(int(coords[2]*scale), size.Width),
			Y2: clampLocation(int(coords[3]*scale), size.Height),
		}
		results = append(results, detection{Box: faceBox, Score: scoreVal})
	}
	return results, nil
}

// CropFaces localizes faces in a (B, 3, H, W) batch normalized to [-1, 1]
// and returns fixed-size crops in the same value range.
//
// The largest detection of each instance whose box reaches MinFaceSize
// becomes the foreground face; every other detection goes into
// the flattened background set. Instances without a qualifying detection are
// reported in FailedIndices, unless UseWholeImageIfNoFace substitutes the
// full image as their foreground crop.
func (c *RetinaFaceClient) CropFaces(images *tensor.Dense, params *config.FaceCropParams) (*config.FaceCropResult, error) {
	shape := images.Shape()
	if len(shape) != 4 || shape[1] != 3 {
		return nil, errors.Errorf("expected a (B, 3, H, W) tensor, got shape %v", shape)
	}
	batchSize, imgH, imgW := shape[0], shape[2], shape[3]

	result := &config.FaceCropResult{
		FgBoxes:       make([]config.FaceBox, 0, batchSize),
		FailedIndices: make([]int, 0),
	}

	fgCrops := make([]*tensor.Dense, 0, batchSize)
	bgCrops := make([]*tensor.Dense, 0)

	for b := range batchSize {
		instance, err := images.Slice(tensor.S(b))
		if err != nil {
			return nil, err
		}
		instanceDense := instance.(*tensor.Dense).Materialize().(*tensor.Dense)

		detections, err := c.detectInstance(instanceDense)
		if err != nil {
			return nil, err
		}

		bestIdx := -1
		for i, det := range detections {
			if det.Box.Width() < params.MinFaceSize || det.Box.Height() < params.MinFaceSize {
				continue
			}
			if bestIdx < 0 || det.Box.Area() > detections[bestIdx].Box.Area() {
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			if params.UseWholeImageIfNoFace {
				wholeBox := config.FaceBox{X1: 0, Y1: 0, X2: imgW, Y2: imgH}
				crop, err := CropInstance(images, b, wholeBox)
				if err != nil {
					return nil, err
				}
				resized, err := ResizeCrop(crop, params.OutSize)
				if err != nil {
					return nil, err
				}
				fgCrops = append(fgCrops, resized)
				result.FgBoxes = append(result.FgBoxes, wholeBox)
			} else {
				result.FailedIndices = append(result.FailedIndices, b)
			}
			continue
		}

		for i, det := range detections {
			box := ExpandBox(det.Box, params.Bleed, imgH, imgW)
			crop, err := CropInstance(images, b, box)
			if err != nil {
				return nil, err
			}
			resized, err := ResizeCrop(crop, params.OutSize)
			if err != nil {
				return nil, err
			}
			if i == bestIdx {
				fgCrops = append(fgCrops, resized)
				result.FgBoxes = append(result.FgBoxes, box)
			} else {
				bgCrops = append(bgCrops, resized)
			}
		}
	}

	if len(fgCrops) == 0 {
		result.FgBoxes = nil
		return result, nil
	}

	stackedFg, err := StackCrops(fgCrops)
	if err != nil {
		return nil, err
	}
	result.FgCrops = stackedFg

	if len(bgCrops) > 0 {
		stackedBg, err := StackCrops(bgCrops)
		if err != nil {
			return nil, err
		}
		result.BgCropsFlat = stackedBg
	}
	return result, nil
}
