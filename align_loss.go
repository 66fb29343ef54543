package go_diffusion_eval

import (
	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/okieraised/go-diffusion-eval/modules"
	"github.com/okieraised/go-diffusion-eval/utils"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"
)

// FaceLocalizer finds faces in a normalized image batch and returns
// fixed-size crops. Implemented by modules.RetinaFaceClient.
type FaceLocalizer interface {
	CropFaces(images *tensor.Dense, params *config.FaceCropParams) (*config.FaceCropResult, error)
}

// IdentityEmbedder maps grayscale face crops to identity embeddings.
// Implemented by modules.ArcFaceClient.
type IdentityEmbedder interface {
	InputSize() int
	EmbedCrops(grays *tensor.Dense) (*tensor.Dense, error)
}

// AlignLossOrchestrator computes the identity-preservation loss between a
// reference image batch and a generated image batch. It is stateless across
// calls; the collaborators hold only frozen model handles.
type AlignLossOrchestrator struct {
	localizer FaceLocalizer
	embedder  IdentityEmbedder
}

func NewAlignLossOrchestrator(localizer FaceLocalizer, embedder IdentityEmbedder) *AlignLossOrchestrator {
	return &AlignLossOrchestrator{
		localizer: localizer,
		embedder:  embedder,
	}
}

// EmbedOptions controls one EmbedImageBatch invocation.
type EmbedOptions struct {
	// MinFaceSize is the minimum detected box height/width.
	MinFaceSize int
	// Bleed is extra crop padding in pixels.
	Bleed int
	// EmbedBackground also embeds the flattened background face crops.
	EmbedBackground bool
	// UseWholeImageIfNoFace falls back to the full image for instances
	// without a detection instead of marking them failed.
	UseWholeImageIfNoFace bool
	// TrackGradient marks the embeddings as participating in downstream
	// gradient computation.
	TrackGradient bool
}

/*
EmbedImageBatch localizes faces in a (B, 3, H, W) batch normalized to [-1, 1]
and embeds them.

Foreground crops are converted to grayscale with the fixed perceptual luma
weighting, resized to the embedder resolution with bilinear interpolation,
then embedded. Background crops get the same treatment only when requested.
When the localizer finds no face in any instance, every output except the
failed-instance list is nil.
*/
func (o *AlignLossOrchestrator) EmbedImageBatch(images *tensor.Dense, opts *EmbedOptions) (*config.EmbedResult, error) {

	cropRes, err := o.localizer.CropFaces(images, &config.FaceCropParams{
		OutSize:               o.embedder.InputSize(),
		MinFaceSize:           opts.MinFaceSize,
		Bleed:                 opts.Bleed,
		UseWholeImageIfNoFace: opts.UseWholeImageIfNoFace,
	})
	if err != nil {
		return nil, err
	}

	result := &config.EmbedResult{
		FailedIndices: cropRes.FailedIndices,
		TrackGradient: opts.TrackGradient,
	}
	if cropRes.Empty() {
		return result, nil
	}

	fgEmb, err := o.embedCrops(cropRes.FgCrops)
	if err != nil {
		return nil, err
	}
	result.FgEmbeddings = fgEmb
	result.FgBoxes = cropRes.FgBoxes

	if opts.EmbedBackground && cropRes.BgCropsFlat != nil {
		bgEmb, err := o.embedCrops(cropRes.BgCropsFlat)
		if err != nil {
			return nil, err
		}
		result.BgEmbeddings = bgEmb
	}
	return result, nil
}

func (o *AlignLossOrchestrator) embedCrops(crops *tensor.Dense) (*tensor.Dense, error) {
	gray, err := modules.GrayscaleLuma(crops)
	if err != nil {
		return nil, err
	}
	resized, err := modules.ResizeBilinearBatch(gray, o.embedder.InputSize())
	if err != nil {
		return nil, err
	}
	return o.embedder.EmbedCrops(resized)
}

// AlignLossOptions controls one AlignLoss invocation.
type AlignLossOptions struct {
	MinFaceSize           int
	Bleed                 int
	SuppressBackground    bool
	UseWholeImageIfNoFace bool
	// TrackGradient additionally returns d(align loss)/d(generated
	// embeddings).
	TrackGradient bool
}

func DefaultAlignLossOptions() *AlignLossOptions {
	return &AlignLossOptions{
		MinFaceSize:           20,
		Bleed:                 2,
		SuppressBackground:    true,
		UseWholeImageIfNoFace: false,
		TrackGradient:         true,
	}
}

/*
AlignLoss computes the identity-alignment loss between refImages (ground
truth) and genImages (generated), both (B, 3, H, W) normalized to [-1, 1].

The alignment loss is the mean cosine-embedding loss between reference and
generated foreground embeddings; the background-suppression loss is the mean
squared background embedding component of the generated batch. Detection
failure in either batch short-circuits both losses to zero and reports the
failed instances instead of computing over a partial batch.

When the generated batch holds several samples of a single reference
identity, the reference embeddings are tiled to match; the ratio must be an
exact integer.
*/
func (o *AlignLossOrchestrator) AlignLoss(refImages, genImages *tensor.Dense, opts *AlignLossOptions) (*config.AlignLossResult, error) {
	if opts == nil {
		opts = DefaultAlignLossOptions()
	}

	// Reference embeddings are a fixed target, never backpropagated through.
	refRes, err := o.EmbedImageBatch(refImages, &EmbedOptions{
		MinFaceSize:           opts.MinFaceSize,
		Bleed:                 opts.Bleed,
		EmbedBackground:       false,
		UseWholeImageIfNoFace: false,
		TrackGradient:         false,
	})
	if err != nil {
		return nil, err
	}

	genRes, err := o.EmbedImageBatch(genImages, &EmbedOptions{
		MinFaceSize:           opts.MinFaceSize,
		Bleed:                 opts.Bleed,
		EmbedBackground:       opts.SuppressBackground,
		UseWholeImageIfNoFace: opts.UseWholeImageIfNoFace,
		TrackGradient:         opts.TrackGradient,
	})
	if err != nil {
		return nil, err
	}

	result := &config.AlignLossResult{
		RefFailedIndices: refRes.FailedIndices,
		GenFailedIndices: genRes.FailedIndices,
	}
	if len(refRes.FailedIndices) > 0 || refRes.Empty() {
		klog.Warningf("failed to detect faces in reference images %v", refRes.FailedIndices)
		return result, nil
	}
	if len(genRes.FailedIndices) > 0 || genRes.Empty() {
		klog.Warningf("failed to detect faces in generated images %v", genRes.FailedIndices)
		return result, nil
	}

	refEmb := refRes.FgEmbeddings
	genEmb := genRes.FgEmbeddings

	// Several generated samples per reference identity: tile the reference
	// embeddings to line the batches up one-to-one.
	refCount, genCount := refEmb.Shape()[0], genEmb.Shape()[0]
	if refCount != genCount {
		if refCount > genCount || genCount%refCount != 0 {
			return nil, errors.Errorf("generated batch size %d is not a positive integer multiple of reference batch size %d", genCount, refCount)
		}
		refEmb, err = utils.TileRows(refEmb, genCount/refCount)
		if err != nil {
			return nil, err
		}
	}

	alignLoss, alignGrad, err := cosineEmbeddingLoss(refEmb, genEmb, genRes.TrackGradient)
	if err != nil {
		return nil, err
	}
	result.AlignLoss = alignLoss
	result.AlignGrad = alignGrad
	result.FgBoxes = genRes.FgBoxes
	klog.V(1).Infof("align loss: %.4f", alignLoss)

	if opts.SuppressBackground {
		if genRes.BgEmbeddings != nil {
			result.BgSuppressLoss = utils.MeanSquare(genRes.BgEmbeddings)
			klog.V(1).Infof("background suppression loss: %.4f", result.BgSuppressLoss)
		} else {
			klog.V(1).Info("background suppression loss: 0, no background faces detected in generated images")
		}
	}
	return result, nil
}

// cosineEmbeddingLoss builds a scoped computation graph for the mean
// "should match" cosine-embedding loss between two (N, D) matrices and
// optionally returns its gradient with respect to gen. The graph lives only
// for this call, so gradient tracking never leaks across invocations.
func cosineEmbeddingLoss(ref, gen *tensor.Dense, withGrad bool) (float32, *tensor.Dense, error) {
	n := ref.Shape()[0]
	if gen.Shape()[0] != n || gen.Shape()[1] != ref.Shape()[1] {
		return 0, nil, errors.Errorf("embedding shapes differ: %v vs %v", ref.Shape(), gen.Shape())
	}

	g := gorgonia.NewGraph()
	refNode := gorgonia.NodeFromAny(g, ref, gorgonia.WithName("ref"))
	genNode := gorgonia.NodeFromAny(g, gen, gorgonia.WithName("gen"))

	dot, err := buildRowDot(refNode, genNode)
	if err != nil {
		return 0, nil, err
	}
	refNorm, err := buildRowNorm(refNode)
	if err != nil {
		return 0, nil, err
	}
	genNorm, err := buildRowNorm(genNode)
	if err != nil {
		return 0, nil, err
	}

	normProd, err := gorgonia.HadamardProd(refNorm, genNorm)
	if err != nil {
		return 0, nil, err
	}
	cos, err := gorgonia.HadamardDiv(dot, normProd)
	if err != nil {
		return 0, nil, err
	}

	ones := gorgonia.NodeFromAny(g, tensor.Ones(tensor.Float32, n), gorgonia.WithName("ones"))
	dist, err := gorgonia.Sub(ones, cos)
	if err != nil {
		return 0, nil, err
	}
	loss, err := gorgonia.Mean(dist)
	if err != nil {
		return 0, nil, err
	}

	var gradNodes gorgonia.Nodes
	if withGrad {
		gradNodes, err = gorgonia.Grad(loss, genNode)
		if err != nil {
			return 0, nil, err
		}
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return 0, nil, err
	}

	lossVal, ok := loss.Value().Data().(float32)
	if !ok {
		return 0, nil, errors.Errorf("unexpected loss value type %T", loss.Value().Data())
	}

	var grad *tensor.Dense
	if withGrad {
		grad, ok = gradNodes[0].Value().(*tensor.Dense)
		if !ok {
			return 0, nil, errors.Errorf("unexpected gradient value type %T", gradNodes[0].Value())
		}
	}
	return lossVal, grad, nil
}

func buildRowDot(a, b *gorgonia.Node) (*gorgonia.Node, error) {
	prod, err := gorgonia.HadamardProd(a, b)
	if err != nil {
		return nil, err
	}
	return gorgonia.Sum(prod, 1)
}

func buildRowNorm(a *gorgonia.Node) (*gorgonia.Node, error) {
	sq, err := gorgonia.Square(a)
	if err != nil {
		return nil, err
	}
	sum, err := gorgonia.Sum(sq, 1)
	if err != nil {
		return nil, err
	}
	return gorgonia.Sqrt(sum)
}
