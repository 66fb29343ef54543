package config

import "time"

// Precision selects the numeric precision of tensors sent to a model.
// It is fixed at client construction and never mutated afterwards.
type Precision int

const (
	PrecisionFP32 Precision = iota
	PrecisionFP16
)

func (p Precision) String() string {
	if p == PrecisionFP16 {
		return "FP16"
	}
	return "FP32"
}

type RetinaFaceParams struct {
	ModelName           string        `json:"model_name"`
	Mean                float64       `json:"mean"`
	Scale               float64       `json:"scale"`
	ConfidenceThreshold float32       `json:"confidence_threshold"`
	MinFaceSize         int           `json:"min_face_size"`
	Bleed               int           `json:"bleed"`
	CropSize            int           `json:"crop_size"`
	Timeout             time.Duration `json:"timeout"`
}

func NewRetinaFaceParams(modelName string, mean, scale float64, confidenceThreshold float32, minFaceSize, bleed, cropSize int, timeout time.Duration) *RetinaFaceParams {
	return &RetinaFaceParams{
		ModelName:           modelName,
		Mean:                mean,
		Scale:               scale,
		ConfidenceThreshold: confidenceThreshold,
		MinFaceSize:         minFaceSize,
		Bleed:               bleed,
		CropSize:            cropSize,
		Timeout:             timeout,
	}
}

var DefaultRetinaFaceParams = &RetinaFaceParams{
	ModelName:           "retinaface",
	Mean:                127.5,
	Scale:               0.00784313725490196,
	ConfidenceThreshold: 0.5,
	MinFaceSize:         20,
	Bleed:               2,
	CropSize:            128,
	Timeout:             10 * time.Second,
}

type ArcFaceParams struct {
	ModelName    string        `json:"model_name"`
	ImgSize      int           `json:"img_size"`
	EmbeddingDim int           `json:"embedding_dim"`
	Precision    Precision     `json:"precision"`
	Timeout      time.Duration `json:"timeout"`
}

func NewArcFaceParams(modelName string, imgSize, embeddingDim int, precision Precision, timeout time.Duration) *ArcFaceParams {
	return &ArcFaceParams{
		ModelName:    modelName,
		ImgSize:      imgSize,
		EmbeddingDim: embeddingDim,
		Precision:    precision,
		Timeout:      timeout,
	}
}

var DefaultArcFaceParams = &ArcFaceParams{
	ModelName:    "arcface_resnet18",
	ImgSize:      128,
	EmbeddingDim: 512,
	Precision:    PrecisionFP16,
	Timeout:      10 * time.Second,
}

type OpticalFlowParams struct {
	ModelName string `json:"model_name"`
	// Upsample is applied to both frames before inference and undone on the
	// predicted flow, flow magnitudes included.
	Upsample float64       `json:"upsample"`
	Timeout  time.Duration `json:"timeout"`
}

func NewOpticalFlowParams(modelName string, upsample float64, timeout time.Duration) *OpticalFlowParams {
	return &OpticalFlowParams{
		ModelName: modelName,
		Upsample:  upsample,
		Timeout:   timeout,
	}
}

var DefaultOpticalFlowParams = &OpticalFlowParams{
	ModelName: "gma_kitti",
	Upsample:  4.0,
	Timeout:   30 * time.Second,
}

type CLIPParams struct {
	ImageModelName string        `json:"image_model_name"`
	TextModelName  string        `json:"text_model_name"`
	ImgSize        int           `json:"img_size"`
	Mean           [3]float64    `json:"mean"`
	STD            [3]float64    `json:"std"`
	Timeout        time.Duration `json:"timeout"`
}

func NewCLIPParams(imageModelName, textModelName string, imgSize int, mean, std [3]float64, timeout time.Duration) *CLIPParams {
	return &CLIPParams{
		ImageModelName: imageModelName,
		TextModelName:  textModelName,
		ImgSize:        imgSize,
		Mean:           mean,
		STD:            std,
		Timeout:        timeout,
	}
}

var DefaultCLIPParams = &CLIPParams{
	ImageModelName: "clip_image_encoder",
	TextModelName:  "clip_text_encoder",
	ImgSize:        224,
	Mean:           [3]float64{0.48145466 * 255.0, 0.4578275 * 255.0, 0.40821073 * 255.0},
	STD:            [3]float64{0.26862954 * 255.0, 0.26130258 * 255.0, 0.27577711 * 255.0},
	Timeout:        10 * time.Second,
}

type DINOParams struct {
	ModelName string        `json:"model_name"`
	ImgSize   int           `json:"img_size"`
	Mean      [3]float64    `json:"mean"`
	STD       [3]float64    `json:"std"`
	Timeout   time.Duration `json:"timeout"`
}

func NewDINOParams(modelName string, imgSize int, mean, std [3]float64, timeout time.Duration) *DINOParams {
	return &DINOParams{
		ModelName: modelName,
		ImgSize:   imgSize,
		Mean:      mean,
		STD:       std,
		Timeout:   timeout,
	}
}

var DefaultDINOParams = &DINOParams{
	ModelName: "dino_vits16",
	ImgSize:   224,
	Mean:      [3]float64{0.485 * 255.0, 0.456 * 255.0, 0.406 * 255.0},
	STD:       [3]float64{0.229 * 255.0, 0.224 * 255.0, 0.225 * 255.0},
	Timeout:   10 * time.Second,
}
