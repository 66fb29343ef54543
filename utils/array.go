package utils

import (
	"encoding/binary"
	"unsafe"

	"github.com/x448/float16"
)

func BytesToT32[T int32 | float32](arr []byte) []T {
	if len(arr) == 0 {
		return nil
	}

	l := len(arr) / 4
	ptr := unsafe.Pointer(&arr[0])
	return (*[1 << 26]T)(ptr)[:l:l]
}

func BytesToT64[T int64 | float64](arr []byte) []T {
	if len(arr) == 0 {
		return nil
	}

	l := len(arr) / 8
	ptr := unsafe.Pointer(&arr[0])
	return (*[1 << 26]T)(ptr)[:l:l]
}

func T32ToBytes[T int32 | float32](arr []T) []byte {
	if len(arr) == 0 {
		return nil
	}

	l := len(arr) * 4
	ptr := unsafe.Pointer(&arr[0])
	return (*[1 << 28]byte)(ptr)[:l:l]
}

// Float32sToFP16Bytes packs float32 values as little-endian IEEE 754 halves,
// the layout Triton expects for FP16 raw input contents.
func Float32sToFP16Bytes(arr []float32) []byte {
	out := make([]byte, len(arr)*2)
	for i, v := range arr {
		binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(v).Bits())
	}
	return out
}

// FP16BytesToFloat32s is the inverse of Float32sToFP16Bytes.
func FP16BytesToFloat32s(arr []byte) []float32 {
	out := make([]float32, len(arr)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(arr[i*2:])).Float32()
	}
	return out
}
