package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/born-ml/agents/internal/tensor"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// ReaderOptions configures how .born data is read.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// Read reads a .born v2 stream into a state dictionary.
func Read(r io.Reader, opts ReaderOptions) (map[string]*tensor.RawTensor, Header, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read fixed header")
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, Header{}, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, Header{}, errors.WithMessagef(ErrUnsupportedVersion, "got %d, expected %d", version, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if headerSize > MaxHeaderSize {
		return nil, Header{}, ErrHeaderTooLarge
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read header")
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to parse header JSON")
	}
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize.
	if _, err := io.CopyN(io.Discard, r, padding(int64(FixedHeaderSize)+int64(headerSize))); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read padding")
	}
	//nolint:gosec // G115: checked against the header before allocating.
	if err := ValidateHeader(&header, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, Header{}, errors.WithMessage(err, "validation failed")
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read tensor data")
	}
	if !opts.SkipChecksumValidation {
		var stored [ChecksumSize]byte
		copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])
		if checksum(data) != stored {
			return nil, Header{}, ErrChecksumMismatch
		}
	}

	state := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		raw, err := decodeTensor(meta, data)
		if err != nil {
			return nil, Header{}, errors.WithMessagef(err, "tensor %q", meta.Name)
		}
		state[meta.Name] = raw
	}
	return state, header, nil
}

// decodeTensor builds the tensor described by meta from the data section.
func decodeTensor(meta TensorMeta, data []byte) (*tensor.RawTensor, error) {
	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, errors.Errorf("unsupported dtype: %s", meta.DType)
	}
	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype)
	if err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}
	if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(len(data)) {
		return nil, errors.Errorf("data [%d, %d) out of bounds", meta.Offset, meta.Offset+meta.Size)
	}
	src := data[meta.Offset : meta.Offset+meta.Size]

	switch meta.storedDType() {
	case meta.DType:
		if len(src) != raw.ByteSize() {
			return nil, errors.Errorf("size %d does not match shape %v (%d bytes)", len(src), meta.Shape, raw.ByteSize())
		}
		copy(raw.Data(), src)
	case DTypeFloat16:
		if len(src) != 2*raw.NumElements() {
			return nil, errors.Errorf("float16 size %d does not match shape %v", len(src), meta.Shape)
		}
		values := make([]float64, raw.NumElements())
		for i := range values {
			values[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(src[2*i:])).Float32())
		}
		switch dtype {
		case tensor.Float32:
			dst := raw.AsFloat32()
			for i, v := range values {
				dst[i] = float32(v)
			}
		case tensor.Float64:
			copy(raw.AsFloat64(), values)
		default:
			return nil, errors.Errorf("float16 storage for %s tensor", dtype)
		}
	default:
		return nil, errors.Errorf("unsupported stored dtype %s for %s", meta.StoredDType, meta.DType)
	}
	return raw, nil
}

// Load reads the .born file at path.
func Load(path string, opts ReaderOptions) (map[string]*tensor.RawTensor, Header, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to open file")
	}
	defer func() { _ = f.Close() }()
	state, header, err := Read(bufio.NewReader(f), opts)
	return state, header, errors.WithMessage(err, path)
}

// ReadHeader reads only the JSON header of the .born file at path.
func ReadHeader(path string) (Header, error) {
	_, header, err := Load(path, ReaderOptions{SkipChecksumValidation: true, ValidationLevel: ValidationNone})
	return header, err
}
