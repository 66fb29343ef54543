package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesToT32(t *testing.T) {
	src := []float32{1.5, -2.25, 1024}
	back := BytesToT32[float32](T32ToBytes(src))
	assert.Equal(t, src, back)

	ints := []int32{0, -1, 1 << 20}
	assert.Equal(t, ints, BytesToT32[int32](T32ToBytes(ints)))

	assert.Nil(t, BytesToT32[float32](nil))
	assert.Nil(t, T32ToBytes[float32](nil))
}

func TestFP16Roundtrip(t *testing.T) {
	src := []float32{0, 1, -1, 0.5, 127.5, -0.25}
	packed := Float32sToFP16Bytes(src)
	assert.Len(t, packed, len(src)*2)

	back := FP16BytesToFloat32s(packed)
	assert.Len(t, back, len(src))
	for i := range src {
		// All of these are exactly representable in half precision.
		assert.Equal(t, src[i], back[i])
	}
}

func TestDerefPointerOr(t *testing.T) {
	val := 7
	assert.Equal(t, 7, DerefPointerOr(&val, 42))
	assert.Equal(t, 42, DerefPointerOr[int](nil, 42))
	assert.Equal(t, "fallback", DerefPointerOr[string](nil, "fallback"))
	assert.Equal(t, 3, DerefPointer(RefPointer(3)))
}
