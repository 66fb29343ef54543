package utils

import (
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// checkpointMagic guards against loading a file that is not a checkpoint.
const checkpointMagic = uint32(0x434b5054) // "CKPT"

// StripModulePrefix removes the "module." key prefix that distributed-training
// checkpointing prepends to every parameter name.
func StripModulePrefix(stateDict map[string]*tensor.Dense) map[string]*tensor.Dense {
	out := make(map[string]*tensor.Dense, len(stateDict))
	for key, val := range stateDict {
		out[strings.TrimPrefix(key, "module.")] = val
	}
	return out
}

// SaveCheckpoint serializes a parameter-name to tensor mapping. Entries are
// written as length-prefixed name, dimension count, dimensions, then raw
// float32 data, all little-endian.
func SaveCheckpoint(fPath string, stateDict map[string]*tensor.Dense) error {
	f, err := os.Create(fPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, checkpointMagic); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(stateDict))); err != nil {
		return err
	}
	for key, val := range stateDict {
		if err := binary.Write(f, binary.LittleEndian, uint32(len(key))); err != nil {
			return err
		}
		if _, err := f.Write([]byte(key)); err != nil {
			return err
		}
		shape := val.Shape()
		if err := binary.Write(f, binary.LittleEndian, uint32(len(shape))); err != nil {
			return err
		}
		for _, dim := range shape {
			if err := binary.Write(f, binary.LittleEndian, uint32(dim)); err != nil {
				return err
			}
		}
		if _, err := f.Write(T32ToBytes(val.Float32s())); err != nil {
			return err
		}
	}
	return nil
}

// LoadCheckpoint reads a serialized parameter mapping written by
// SaveCheckpoint and strips the removable "module." prefix from every key.
func LoadCheckpoint(fPath string) (map[string]*tensor.Dense, error) {
	f, err := os.Open(fPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic uint32
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return nil, errors.Wrap(err, "failed to read checkpoint header")
	}
	if magic != checkpointMagic {
		return nil, errors.Errorf("%s is not a checkpoint file", fPath)
	}

	var numEntries uint32
	if err := binary.Read(f, binary.LittleEndian, &numEntries); err != nil {
		return nil, errors.Wrap(err, "failed to read checkpoint entry count")
	}

	stateDict := make(map[string]*tensor.Dense, numEntries)
	for i := uint32(0); i < numEntries; i++ {
		var nameLen uint32
		if err := binary.Read(f, binary.LittleEndian, &nameLen); err != nil {
			return nil, errors.Wrapf(err, "failed to read name length of entry %d", i)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(f, name); err != nil {
			return nil, errors.Wrapf(err, "failed to read name of entry %d", i)
		}

		var numDims uint32
		if err := binary.Read(f, binary.LittleEndian, &numDims); err != nil {
			return nil, errors.Wrapf(err, "failed to read dims of %s", name)
		}
		shape := make([]int, numDims)
		numElems := 1
		for d := range shape {
			var dim uint32
			if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
				return nil, errors.Wrapf(err, "failed to read dim %d of %s", d, name)
			}
			shape[d] = int(dim)
			numElems *= int(dim)
		}

		raw := make([]byte, numElems*4)
		if _, err := io.ReadFull(f, raw); err != nil {
			return nil, errors.Wrapf(err, "failed to read data of %s", name)
		}
		backing := make([]float32, numElems)
		copy(backing, BytesToT32[float32](raw))

		stateDict[string(name)] = tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(shape...),
			tensor.WithBacking(backing),
		)
	}
	return StripModulePrefix(stateDict), nil
}
