package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/born-ml/agents/internal/tensor"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Version is recorded in the header of every written file.
const Version = "0.1.0"

// WriteOptions configures how tensors are stored.
type WriteOptions struct {
	// HalfPrecision stores float32 and float64 tensors as float16.
	HalfPrecision bool
	// FullPrecision lists tensors kept at their own dtype even with
	// HalfPrecision, e.g. optimizer step counters and moments.
	FullPrecision []string
}

// half reports whether the tensor name is stored as float16.
func (o WriteOptions) half(name string) bool {
	return o.HalfPrecision && !slices.Contains(o.FullPrecision, name)
}

// sortedNames returns the keys of state in increasing order.
func sortedNames(state map[string]*tensor.RawTensor) []string {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// encodeTensor returns the on-disk bytes of the tensor name and the stored
// dtype name when it differs from raw's dtype.
func encodeTensor(name string, raw *tensor.RawTensor, opts WriteOptions) ([]byte, string) {
	if !opts.half(name) || !raw.DType().IsFloat() {
		return raw.Data(), ""
	}
	values := raw.Float32s()
	data := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(data[2*i:], float16.Fromfloat32(v).Bits())
	}
	return data, DTypeFloat16
}

// Write writes state as a .born v2 stream. Header fields FormatVersion,
// Version, CreatedAt and Tensors are filled in.
func Write(w io.Writer, state map[string]*tensor.RawTensor, header Header, opts WriteOptions) error {
	header.FormatVersion = FormatVersion
	header.Version = Version
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Tensor data in name order.
	var data bytes.Buffer
	header.Tensors = make([]TensorMeta, 0, len(state))
	halfUsed := false
	for _, name := range sortedNames(state) {
		if err := ValidateTensorName(name); err != nil {
			return errors.WithMessage(err, "writing .born")
		}
		raw := state[name]
		encoded, stored := encodeTensor(name, raw, opts)
		halfUsed = halfUsed || stored != ""
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:        name,
			DType:       dtypeToString(raw.DType()),
			StoredDType: stored,
			Shape:       []int(raw.Shape()),
			Offset:      int64(data.Len()),
			Size:        int64(len(encoded)),
		})
		data.Write(encoded)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Checkpoint != nil {
		flags |= FlagHasCheckpoint
	}
	if halfUsed {
		flags |= FlagHalfPrecision
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	sum := checksum(data.Bytes())
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], sum[:])

	pad := padding(int64(FixedHeaderSize + len(headerJSON)))
	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, pad), data.Bytes()} {
		if _, err := w.Write(chunk); err != nil {
			return errors.Wrap(err, "failed to write .born data")
		}
	}
	return nil
}

// Save writes state to path. The file is written to a temporary file in the
// same directory and renamed, so readers never see a partial checkpoint.
func Save(path string, state map[string]*tensor.RawTensor, header Header, opts WriteOptions) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Write(tmp, state, header, opts); err != nil {
		_ = tmp.Close()
		return errors.WithMessagef(err, "saving %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "saving %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "saving %s", path)
}
