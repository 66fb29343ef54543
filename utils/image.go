package utils

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// NormalizationOffset and NormalizationScale map uint8 pixel values into
// the [-1, 1] range expected by the identity embedder input convention.
const (
	NormalizationOffset = 127.5
	NormalizationScale  = 127.5
)

func ConvertImageToMat(bImage []byte) (*gocv.Mat, error) {
	dstMat := gocv.NewMat()
	srcMat, err := gocv.IMDecode(bImage, gocv.IMReadColor)
	if err != nil {
		return &dstMat, err
	}

	gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRToRGB)
	return &dstMat, nil
}

// MatToNormalizedTensor converts an RGB uint8 Mat into a (1, 3, H, W)
// float32 tensor with values normalized to [-1, 1].
func MatToNormalizedTensor(img gocv.Mat) (*tensor.Dense, error) {
	dims := img.Size()
	h, w := dims[0], dims[1]

	imgTensors := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 3, h, w),
	)
	for z := range 3 {
		for y := range h {
			for x := range w {
				err := imgTensors.SetAt((float32(img.GetVecbAt(y, x)[z])-float32(NormalizationOffset))/float32(NormalizationScale), 0, z, y, x)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return imgTensors, nil
}

// MatsToNormalizedBatch stacks same-sized RGB Mats into a (B, 3, H, W)
// float32 tensor normalized to [-1, 1].
func MatsToNormalizedBatch(imgs []gocv.Mat) (*tensor.Dense, error) {
	if len(imgs) == 0 {
		return nil, errors.New("empty image batch")
	}

	singles := make([]*tensor.Dense, 0, len(imgs))
	for idx, img := range imgs {
		if img.Size()[0] != imgs[0].Size()[0] || img.Size()[1] != imgs[0].Size()[1] {
			return nil, errors.Errorf("image %d size %v does not match image 0 size %v", idx, img.Size(), imgs[0].Size())
		}
		t, err := MatToNormalizedTensor(img)
		if err != nil {
			return nil, err
		}
		err = t.Reshape(t.Shape()[1:]...)
		if err != nil {
			return nil, err
		}
		singles = append(singles, t)
	}
	if len(singles) == 1 {
		err := singles[0].Reshape(append([]int{1}, singles[0].Shape()...)...)
		if err != nil {
			return nil, err
		}
		return singles[0], nil
	}
	return singles[0].Stack(0, singles[1:]...)
}

// NormalizedTensorToMat converts a (1, 3, H, W) tensor in [-1, 1] back into
// an RGB uint8 Mat, clipping out-of-range values.
func NormalizedTensorToMat(t *tensor.Dense) (*gocv.Mat, error) {
	shape := t.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return nil, errors.Errorf("expected a (1, 3, H, W) tensor, got shape %v", shape)
	}
	h, w := shape[2], shape[3]

	data := t.Float32s()
	planeSize := h * w
	img := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for z := range 3 {
		for y := range h {
			for x := range w {
				raw := data[z*planeSize+y*w+x]*float32(NormalizationScale) + float32(NormalizationOffset)
				if raw < 0 {
					raw = 0
				}
				if raw > 255 {
					raw = 255
				}
				img.SetUCharAt(y, x*3+z, uint8(raw+0.5))
			}
		}
	}
	return &img, nil
}

// LoadImageForEmbedding reads an image file and returns it as a (1, 3, H, W)
// tensor in RGB order, normalized to [-1, 1].
func LoadImageForEmbedding(fPath string) (*tensor.Dense, error) {
	content, err := os.ReadFile(fPath)
	if err != nil {
		return nil, err
	}
	img, err := ConvertImageToMat(content)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	return MatToNormalizedTensor(*img)
}

// LoadImageDir reads every image in a directory in filename order and returns
// RGB Mats resized to size x size. Size 0 keeps the native resolution.
func LoadImageDir(dirPath string, size int) ([]gocv.Mat, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)

	imgs := make([]gocv.Mat, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dirPath, name))
		if err != nil {
			return nil, err
		}
		img, err := ConvertImageToMat(content)
		if err != nil {
			return nil, err
		}
		if size > 0 {
			resized := gocv.NewMat()
			gocv.Resize(*img, &resized, image.Point{X: size, Y: size}, 0.0, 0.0, gocv.InterpolationLinear)
			err = img.Close()
			if err != nil {
				return nil, err
			}
			imgs = append(imgs, resized)
		} else {
			imgs = append(imgs, *img)
		}
	}
	return imgs, nil
}

func TensorToPoints(t *tensor.Dense) ([]gocv.Point2f, error) {
	shape := t.Shape()
	if len(shape) != 2 || shape[1] != 2 {
		return nil, errors.Errorf("expected a 2D tensor with shape (n, 2), got shape: %v", shape)
	}
	data := t.Float32s()
	n := shape[0]
	points := make([]gocv.Point2f, n)
	for i := 0; i < n; i++ {
		points[i] = gocv.Point2f{
			X: data[i*2],
			Y: data[i*2+1],
		}
	}

	return points, nil
}

func OpenCVImageToJPEG(fPath string, jpegQuality int, img gocv.Mat) error {
	outImg, err := img.ToImage()
	if err != nil {
		return err
	}

	f, err := os.Create(fPath)
	if err != nil {
		return err
	}
	defer f.Close()

	opt := jpeg.Options{
		Quality: jpegQuality,
	}
	err = jpeg.Encode(f, outImg, &opt)
	if err != nil {
		return err
	}
	return nil
}
