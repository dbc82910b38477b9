package serialization

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/born-ml/agents/internal/tensor"
	"github.com/pkg/errors"
)

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensorsTo writes tensors in SafeTensors format:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw bytes]
//
// Tensors are written in alphabetical order by name. With HalfPrecision,
// float tensors are stored as F16.
func WriteSafeTensorsTo(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string, opts WriteOptions) error {
	names := sortedNames(tensors)
	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	encoded := make([][]byte, len(names))
	var offset int64
	for i, name := range names {
		raw := tensors[name]
		data, stored := encodeTensor(name, raw, opts)
		encoded[i] = data
		dtype := dtypeToSafeTensors(raw.DType())
		if stored == DTypeFloat16 {
			dtype = "F16"
		}
		shape := make([]int64, len(raw.Shape()))
		for j, d := range raw.Shape() {
			shape[j] = int64(d)
		}
		header[name] = SafeTensorHeader{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + int64(len(data))},
		}
		offset += int64(len(data))
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for i, data := range encoded {
		if _, err := w.Write(data); err != nil {
			return errors.Wrapf(err, "failed to write tensor %s", names[i])
		}
	}
	return nil
}

// WriteSafeTensors writes tensors to a SafeTensors file at path.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string, opts WriteOptions) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := WriteSafeTensorsTo(f, tensors, metadata, opts); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "failed to close file")
}

// dtypeToSafeTensors converts tensor.DataType to SafeTensors dtype string.
func dtypeToSafeTensors(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return "F32"
	case tensor.Float64:
		return "F64"
	case tensor.Int32:
		return "I32"
	case tensor.Int64:
		return "I64"
	case tensor.Bool:
		return "BOOL"
	default:
		return "F32"
	}
}
