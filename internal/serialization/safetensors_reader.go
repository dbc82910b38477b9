package serialization

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/born-ml/agents/internal/tensor"
	"github.com/pkg/errors"
)

// maxSafeTensorsHeader bounds the JSON header of SafeTensors files.
const maxSafeTensorsHeader = 100 * 1024 * 1024

// ReadSafeTensorsFrom reads every tensor of a SafeTensors stream written by
// WriteSafeTensorsTo, together with its metadata. F16 tensors are widened to
// float32.
func ReadSafeTensorsFrom(r io.Reader) (map[string]*tensor.RawTensor, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > maxSafeTensorsHeader {
		return nil, nil, errors.Errorf("invalid header size: %d (too large)", headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header")
	}
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &rawMap); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse header JSON")
	}

	var metadata map[string]string
	if raw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(raw, &metadata); err != nil {
			return nil, nil, errors.Wrap(err, "failed to unmarshal metadata")
		}
		delete(rawMap, "__metadata__")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read tensor data")
	}

	state := make(map[string]*tensor.RawTensor, len(rawMap))
	for name, raw := range rawMap {
		var info SafeTensorHeader
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to unmarshal tensor %s", name)
		}
		meta, err := safeTensorsMeta(name, info)
		if err != nil {
			return nil, nil, err
		}
		t, err := decodeTensor(meta, data)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "tensor %s", name)
		}
		state[name] = t
	}
	return state, metadata, nil
}

// ReadSafeTensors reads the SafeTensors file at path.
func ReadSafeTensors(path string) (map[string]*tensor.RawTensor, map[string]string, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open file")
	}
	defer func() { _ = f.Close() }()
	return ReadSafeTensorsFrom(f)
}

// safeTensorsMeta translates a SafeTensors entry to the TensorMeta decodeTensor
// understands.
func safeTensorsMeta(name string, info SafeTensorHeader) (TensorMeta, error) {
	meta := TensorMeta{
		Name:   name,
		Shape:  make([]int, len(info.Shape)),
		Offset: info.DataOffsets[0],
		Size:   info.DataOffsets[1] - info.DataOffsets[0],
	}
	for i, d := range info.Shape {
		meta.Shape[i] = int(d)
	}
	switch info.DType {
	case "F32":
		meta.DType = DTypeFloat32
	case "F64":
		meta.DType = DTypeFloat64
	case "I32":
		meta.DType = DTypeInt32
	case "I64":
		meta.DType = DTypeInt64
	case "BOOL":
		meta.DType = DTypeBool
	case "F16":
		meta.DType, meta.StoredDType = DTypeFloat32, DTypeFloat16
	default:
		return meta, errors.Errorf("tensor %s: unsupported dtype %s", name, info.DType)
	}
	return meta, nil
}
