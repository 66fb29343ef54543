package modules

import (
	"image"

	"github.com/okieraised/go-diffusion-eval/config"
	"github.com/okieraised/go-diffusion-eval/utils"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// Perceptual luma weights for RGB to grayscale conversion, in RGB order.
const (
	lumaWeightR = 0.299
	lumaWeightG = 0.587
	lumaWeightB = 0.114
)

func clampLocation(val, length int) int {
	if val < 0 {
		return 0
	}
	if val > length {
		return length
	}
	return val
}

// ExpandBox grows a bounding box by bleed pixels on every side and clamps it
// to the h x w image bounds.
func ExpandBox(box config.FaceBox, bleed, h, w int) config.FaceBox {
	return config.FaceBox{
		X1: clampLocation(box.X1-bleed, w),
		Y1: clampLocation(box.Y1-bleed, h),
		X2: clampLocation(box.X2+bleed, w),
		Y2: clampLocation(box.Y2+bleed, h),
	}
}

// CropInstance copies the box region of instance b out of a (B, C, H, W)
// batch tensor as a (C, boxH, boxW) tensor.
func CropInstance(images *tensor.Dense, b int, box config.FaceBox) (*tensor.Dense, error) {
	shape := images.Shape()
	if len(shape) != 4 {
		return nil, errors.Errorf("expected a (B, C, H, W) tensor, got shape %v", shape)
	}
	if box.Width() <= 0 || box.Height() <= 0 {
		return nil, errors.Errorf("degenerate crop box %+v", box)
	}

	channels := shape[1]
	crop := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(channels, box.Height(), box.Width()),
	)
	for z := range channels {
		for y := box.Y1; y < box.Y2; y++ {
			for x := box.X1; x < box.X2; x++ {
				val, err := images.At(b, z, y, x)
				if err != nil {
					return nil, err
				}
				err = crop.SetAt(val.(float32), z, y-box.Y1, x-box.X1)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return crop, nil
}

// resizePlane resizes a single float32 plane with bilinear interpolation
// (no corner alignment, matching OpenCV conventions).
func resizePlane(data []float32, h, w, outH, outW int) ([]float32, error) {
	if h == outH && w == outW {
		out := make([]float32, len(data))
		copy(out, data)
		return out, nil
	}

	src, err := gocv.NewMatWithSizesFromBytes([]int{h, w}, gocv.MatTypeCV32F, utils.T32ToBytes(data))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Point{X: outW, Y: outH}, 0.0, 0.0, gocv.InterpolationLinear)

	out := make([]float32, outH*outW)
	copy(out, utils.BytesToT32[float32](dst.ToBytes()))
	return out, nil
}

// ResizeCrop resizes a (C, H, W) crop to (C, outSize, outSize).
func ResizeCrop(crop *tensor.Dense, outSize int) (*tensor.Dense, error) {
	shape := crop.Shape()
	if len(shape) != 3 {
		return nil, errors.Errorf("expected a (C, H, W) tensor, got shape %v", shape)
	}
	channels, h, w := shape[0], shape[1], shape[2]

	data := crop.Float32s()
	out := make([]float32, 0, channels*outSize*outSize)
	for z := range channels {
		plane, err := resizePlane(data[z*h*w:(z+1)*h*w], h, w, outSize, outSize)
		if err != nil {
			return nil, err
		}
		out = append(out, plane...)
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(channels, outSize, outSize),
		tensor.WithBacking(out),
	), nil
}

// GrayscaleLuma converts a (N, 3, H, W) RGB crop batch into a (N, 1, H, W)
// grayscale batch using the fixed perceptual luma weighting.
func GrayscaleLuma(crops *tensor.Dense) (*tensor.Dense, error) {
	shape := crops.Shape()
	if len(shape) != 4 || shape[1] != 3 {
		return nil, errors.Errorf("expected a (N, 3, H, W) tensor, got shape %v", shape)
	}
	n, h, w := shape[0], shape[2], shape[3]

	data := crops.Float32s()
	out := make([]float32, n*h*w)
	planeSize := h * w
	for b := range n {
		base := b * 3 * planeSize
		for i := range planeSize {
			out[b*planeSize+i] = lumaWeightR*data[base+i] +
				lumaWeightG*data[base+planeSize+i] +
				lumaWeightB*data[base+2*planeSize+i]
		}
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n, 1, h, w),
		tensor.WithBacking(out),
	), nil
}

// ResizeBilinearBatch resizes a (N, C, H, W) batch to (N, C, outSize, outSize).
func ResizeBilinearBatch(crops *tensor.Dense, outSize int) (*tensor.Dense, error) {
	shape := crops.Shape()
	if len(shape) != 4 {
		return nil, errors.Errorf("expected a (N, C, H, W) tensor, got shape %v", shape)
	}
	n, channels, h, w := shape[0], shape[1], shape[2], shape[3]

	data := crops.Float32s()
	out := make([]float32, 0, n*channels*outSize*outSize)
	planeSize := h * w
	for b := range n {
		for z := range channels {
			offset := (b*channels + z) * planeSize
			plane, err := resizePlane(data[offset:offset+planeSize], h, w, outSize, outSize)
			if err != nil {
				return nil, err
			}
			out = append(out, plane...)
		}
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n, channels, outSize, outSize),
		tensor.WithBacking(out),
	), nil
}

// StackCrops stacks equally-shaped (C, S, S) crops into a (N, C, S, S) batch.
func StackCrops(crops []*tensor.Dense) (*tensor.Dense, error) {
	if len(crops) == 0 {
		return nil, errors.New("no crops to stack")
	}
	if len(crops) == 1 {
		stacked := crops[0].Clone().(*tensor.Dense)
		err := stacked.Reshape(append([]int{1}, stacked.Shape()...)...)
		if err != nil {
			return nil, err
		}
		return stacked, nil
	}
	return crops[0].Stack(0, crops[1:]...)
}
