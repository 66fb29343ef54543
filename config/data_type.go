package config

import (
	"gorgonia.org/tensor"
)

// FaceBox is the pixel-space bounding box of a detected face, aligned by
// position to the foreground crop batch.
type FaceBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b *FaceBox) Width() int {
	return b.X2 - b.X1
}

func (b *FaceBox) Height() int {
	return b.Y2 - b.Y1
}

func (b *FaceBox) Area() int {
	return b.Width() * b.Height()
}

type Size struct {
	Width  int
	Height int
}

func (s *Size) Max() int {
	if s.Height > s.Width {
		return s.Height
	}
	return s.Width
}

func (s *Size) Min() int {
	if s.Height < s.Width {
		return s.Height
	}
	return s.Width
}

// FaceCropParams controls a single CropFaces invocation.
type FaceCropParams struct {
	// OutSize is the spatial size of every returned crop.
	OutSize int
	// MinFaceSize drops detections whose box height or width is below it.
	MinFaceSize int
	// Bleed is extra pixel padding added around a detected box before cropping.
	Bleed int
	// UseWholeImageIfNoFace substitutes the full image as the foreground crop
	// for instances where nothing was detected.
	UseWholeImageIfNoFace bool
}

// FaceCropResult is the localizer output for one image batch.
//
// FgCrops holds one crop per successful instance, in batch order, shaped
// (N, 3, OutSize, OutSize) with values in the input normalization range.
// It is nil when no face was found anywhere in the batch.
// BgCropsFlat holds every non-foreground face across the batch with no
// per-instance alignment; nil when there are none.
type FaceCropResult struct {
	FgCrops       *tensor.Dense
	BgCropsFlat   *tensor.Dense
	FgBoxes       []FaceBox
	FailedIndices []int
}

// Empty reports whether no foreground face was detected in any instance.
func (r *FaceCropResult) Empty() bool {
	return r.FgCrops == nil
}

// EmbedResult is the output of embedding one image batch.
//
// FgEmbeddings is (N, D) with one row per successful instance; nil when the
// localizer found nothing. BgEmbeddings is nil unless background embedding
// was requested and background faces exist. TrackGradient records whether the
// embeddings participate in downstream gradient computation.
type EmbedResult struct {
	FgEmbeddings  *tensor.Dense
	BgEmbeddings  *tensor.Dense
	FgBoxes       []FaceBox
	FailedIndices []int
	TrackGradient bool
}

func (r *EmbedResult) Empty() bool {
	return r.FgEmbeddings == nil
}

// AlignLossResult carries the identity-alignment loss for one
// reference/generated image batch pair.
type AlignLossResult struct {
	// AlignLoss is the mean cosine-embedding loss between reference and
	// generated foreground embeddings. Zero on the failure short-circuit.
	AlignLoss float32 `json:"align_loss"`
	// BgSuppressLoss is the mean squared background embedding component,
	// zero when suppression is off or no background faces exist.
	BgSuppressLoss float32 `json:"bg_suppress_loss"`
	// FgBoxes are the generated-batch foreground boxes, nil on the failure
	// short-circuit.
	FgBoxes []FaceBox `json:"fg_boxes"`
	// AlignGrad is d(AlignLoss)/d(generated embeddings), populated only when
	// gradient tracking was requested and the loss was computed.
	AlignGrad *tensor.Dense `json:"-"`
	// RefFailedIndices and GenFailedIndices name the batch instances where
	// face detection failed. Either being non-empty means the losses were
	// zeroed, not computed.
	RefFailedIndices []int `json:"ref_failed_indices"`
	GenFailedIndices []int `json:"gen_failed_indices"`
}

// Failed reports whether the losses were short-circuited to zero because of
// detection failures. It distinguishes "no penalty" from "not computed".
func (r *AlignLossResult) Failed() bool {
	return len(r.RefFailedIndices) > 0 || len(r.GenFailedIndices) > 0
}

// ImageSetSimilarity holds the similarity scores of a generated image set
// against a ground-truth image set.
type ImageSetSimilarity struct {
	SimImage float32 `json:"sim_image"` // CLIP image-to-image
	SimText  float32 `json:"sim_text"`  // CLIP image-to-prompt
	SimDINO  float32 `json:"sim_dino"`  // DINO image-to-image
}
