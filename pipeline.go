package go_diffusion_eval

import (
	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/okieraised/go-diffusion-eval/modules"
	"github.com/okieraised/go-diffusion-eval/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"gocv.io/x/gocv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"gorgonia.org/tensor"
)

// evalImageSize is the resolution image sets are loaded at for CLIP/DINO
// scoring.
const evalImageSize = 256

// EvalPipeline bundles the model clients used to score a personalized
// diffusion run: face identity preservation, image-set similarity, and
// optical-flow frame recovery. All model weights are frozen server-side;
// the pipeline itself is stateless across calls.
type EvalPipeline struct {
	RetinaFace *modules.RetinaFaceClient
	ArcFace    *modules.ArcFaceClient
	Flow       *modules.FlowEstimatorClient
	CLIP       *modules.CLIPEvalClient
	DINO       *modules.DINOEvalClient

	idLoss *AlignLossOrchestrator
}

// NewTritonConnection dials a Triton server with the standard client options.
func NewTritonConnection(serverURL string) (*gotritonclient.TritonGRPCClient, error) {
	return gotritonclient.NewTritonGRPCClient(
		serverURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{PermitWithoutStream: true}),
	)
}

// NewEvalPipeline initializes every model client against the given Triton
// server. Nil params fall back to the defaults.
func NewEvalPipeline(tritonClient *gotritonclient.TritonGRPCClient, params *config.PipelineParams) (*EvalPipeline, error) {

	if params == nil {
		params = config.DefaultPipelineParams()
	}

	pipeline := &EvalPipeline{}

	retinaFaceClient, err := modules.NewRetinaFaceClient(tritonClient, params.RetinaFace)
	if err != nil {
		return pipeline, err
	}
	pipeline.RetinaFace = retinaFaceClient

	arcFaceClient, err := modules.NewArcFaceClient(tritonClient, params.ArcFace)
	if err != nil {
		return pipeline, err
	}
	pipeline.ArcFace = arcFaceClient

	flowClient, err := modules.NewFlowEstimatorClient(tritonClient, params.OpticalFlow)
	if err != nil {
		return pipeline, err
	}
	pipeline.Flow = flowClient

	clipClient, err := modules.NewCLIPEvalClient(tritonClient, params.CLIP)
	if err != nil {
		return pipeline, err
	}
	pipeline.CLIP = clipClient

	dinoClient, err := modules.NewDINOEvalClient(tritonClient, params.DINO)
	if err != nil {
		return pipeline, err
	}
	pipeline.DINO = dinoClient

	pipeline.idLoss = NewAlignLossOrchestrator(retinaFaceClient, arcFaceClient)

	return pipeline, nil
}

/*
EmbedImageBatch localizes and embeds the faces of a (B, 3, H, W) image batch
normalized to [-1, 1].

Inputs:

  - images (*tensor.Dense): normalized image batch.
  - opts (*EmbedOptions): localization and embedding controls.

Outputs:

  - result (*config.EmbedResult): foreground/background embeddings, boxes,
    and failed instance indices.
*/
func (p *EvalPipeline) EmbedImageBatch(images *tensor.Dense, opts *EmbedOptions) (*config.EmbedResult, error) {
	return p.idLoss.EmbedImageBatch(images, opts)
}

/*
ArcFaceAlignLoss computes the identity-alignment loss between reference and
generated image batches, plus the background-suppression penalty.

Inputs:

  - refImages (*tensor.Dense): ground-truth image batch.
  - genImages (*tensor.Dense): generated image batch.
  - opts (*AlignLossOptions): nil takes the defaults (min face size 20,
    bleed 2, background suppression on).

Outputs:

  - result (*config.AlignLossResult): both losses, generated foreground
    boxes, and the failure diagnostics.
*/
func (p *EvalPipeline) ArcFaceAlignLoss(refImages, genImages *tensor.Dense, opts *AlignLossOptions) (*config.AlignLossResult, error) {
	return p.idLoss.AlignLoss(refImages, genImages, opts)
}

/*
CompareImageSets scores a generated sample directory against a ground-truth
directory with CLIP and DINO.

Inputs:

  - gtDir (string): ground-truth image directory.
  - samplesDir (string): generated image directory.
  - prompt (string): the generation prompt, scored against the samples.
  - numSamples (int): only score the last numSamples images; -1 scores all.
  - gtSelfCompare (bool): score the ground-truth set against itself.

Outputs:

  - similarity (*config.ImageSetSimilarity): CLIP image/text and DINO scores.
*/
func (p *EvalPipeline) CompareImageSets(gtDir, samplesDir, prompt string, numSamples int, gtSelfCompare bool) (*config.ImageSetSimilarity, error) {

	gtImages, err := utils.LoadImageDir(gtDir, evalImageSize)
	if err != nil {
		return nil, err
	}
	defer closeMats(gtImages)

	var sampleImages []gocv.Mat
	if gtSelfCompare {
		// Always compare the whole ground-truth set against itself.
		sampleImages = gtImages
		numSamples = -1
	} else {
		sampleImages, err = utils.LoadImageDir(samplesDir, evalImageSize)
		if err != nil {
			return nil, err
		}
		defer closeMats(sampleImages)
	}

	if numSamples >= 0 && numSamples < len(sampleImages) {
		sampleImages = sampleImages[len(sampleImages)-numSamples:]
	}

	simImage, simText, err := p.CLIP.EvaluateImageSets(sampleImages, gtImages, prompt)
	if err != nil {
		return nil, err
	}

	simDINO, err := p.DINO.ImageSetSimilarity(gtImages, sampleImages)
	if err != nil {
		return nil, err
	}

	return &config.ImageSetSimilarity{
		SimImage: simImage,
		SimText:  simText,
		SimDINO:  simDINO,
	}, nil
}

/*
RecoverNextFrame reconstructs the second frame of a pair by warping the first
frame with the negated predicted optical flow.

Inputs:

  - img1 (gocv.Mat): first RGB frame.
  - img2 (gocv.Mat): second RGB frame, same size.

Outputs:

  - recovered (gocv.Mat): the warped reconstruction of img2.
*/
func (p *EvalPipeline) RecoverNextFrame(img1, img2 gocv.Mat) (gocv.Mat, error) {
	flow, err := p.Flow.EstimateFlow(img1, img2)
	if err != nil {
		return gocv.NewMat(), err
	}

	negated, err := modules.NegateFlow(flow)
	if err != nil {
		return gocv.NewMat(), err
	}
	return modules.BackwardWarpByFlow(img1, negated)
}

func closeMats(mats []gocv.Mat) {
	for idx := range mats {
		_ = mats[idx].Close()
	}
}
