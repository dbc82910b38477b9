package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/agents/internal/tensor"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"dense_1/kernel":    must.M1(tensor.FromFloat32s([]float32{0.5, -1.25, 2, 3.75, 0, 8}, tensor.Shape{2, 3})),
		"dense_1/bias":      must.M1(tensor.FromFloat32s([]float32{0.1, 0.2, 0.3}, tensor.Shape{3})),
		"ppo/log_std":       must.M1(tensor.FromFloat64s([]float64{-0.5}, tensor.Shape{1, 1})),
		"adam_1/iterations": tensor.Scalar(12, tensor.Float32),
		"steps":             tensor.Full(tensor.Shape{2}, 7, tensor.Int64),
	}
}

func TestRoundTrip(t *testing.T) {
	state := sampleState()
	runID := uuid.NewString()
	header := Header{
		ModelType: "ppo",
		RunID:     runID,
		Metadata:  map[string]string{"env": "cartpole"},
		Checkpoint: &CheckpointMeta{
			BrainName:     "CartPoleBrain",
			Step:          1200,
			MaxStep:       50000,
			LastReward:    37.5,
			OptimizerType: "adam",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, state, header, WriteOptions{}))
	assert.Equal(t, MagicBytes, buf.String()[:4])
	flags := binary.LittleEndian.Uint32(buf.Bytes()[8:12])
	assert.NotZero(t, flags&FlagHasCheckpoint)
	assert.NotZero(t, flags&FlagHasMetadata)
	assert.Zero(t, flags&FlagHalfPrecision)

	loaded, got, err := Read(&buf, ReaderOptions{})
	require.NoError(t, err)
	require.Len(t, loaded, len(state))
	for name, want := range state {
		assert.Equal(t, want.DType(), loaded[name].DType(), name)
		assert.Equal(t, want.Shape().NumElements(), loaded[name].Shape().NumElements(), name)
		assert.Equal(t, want.Data(), loaded[name].Data(), name)
	}
	assert.Equal(t, FormatVersion, got.FormatVersion)
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, runID, got.RunID)
	assert.Equal(t, "cartpole", got.Metadata["env"])
	require.NotNil(t, got.Checkpoint)
	assert.Equal(t, 1200, got.Checkpoint.Step)
	assert.Equal(t, 37.5, got.Checkpoint.LastReward)

	// Tensors are laid out in name order.
	names := make([]string, len(got.Tensors))
	for i, m := range got.Tensors {
		names[i] = m.Name
	}
	assert.IsNonDecreasing(t, names)
}

func TestHalfPrecision(t *testing.T) {
	state := sampleState()
	var full, half bytes.Buffer
	require.NoError(t, Write(&full, state, Header{}, WriteOptions{}))
	require.NoError(t, Write(&half, state, Header{}, WriteOptions{HalfPrecision: true}))

	_, fullHeader, err := Read(&full, ReaderOptions{})
	require.NoError(t, err)
	loaded, header, err := Read(&half, ReaderOptions{})
	require.NoError(t, err)
	// Padding and header size dominate such small tensors: compare the
	// stored tensor bytes only.
	dataSize := func(h Header) (size int64) {
		for _, m := range h.Tensors {
			size += m.Size
		}
		return size
	}
	assert.Less(t, dataSize(header), dataSize(fullHeader))
	for _, m := range header.Tensors {
		if m.Name == "steps" {
			assert.Empty(t, m.StoredDType)
		} else {
			assert.Equal(t, DTypeFloat16, m.StoredDType, m.Name)
		}
	}
	// All sample values are exactly representable in float16 except 0.1-0.3.
	assert.Equal(t, []float32{0.5, -1.25, 2, 3.75, 0, 8}, loaded["dense_1/kernel"].AsFloat32())
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, loaded["dense_1/bias"].AsFloat32(), 1e-3)
	assert.Equal(t, tensor.Float64, loaded["ppo/log_std"].DType())
	assert.Equal(t, -0.5, loaded["ppo/log_std"].Item())
	assert.Equal(t, []int64{7, 7}, loaded["steps"].AsInt64())
}

func TestHalfPrecisionExemptions(t *testing.T) {
	state := sampleState()
	state["adam_1/iterations"] = tensor.Scalar(70000, tensor.Float32)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, state, Header{}, WriteOptions{
		HalfPrecision: true,
		FullPrecision: []string{"adam_1/iterations"},
	}))
	loaded, header, err := Read(&buf, ReaderOptions{})
	require.NoError(t, err)
	for _, m := range header.Tensors {
		switch m.Name {
		case "adam_1/iterations", "steps":
			assert.Empty(t, m.StoredDType, m.Name)
		default:
			assert.Equal(t, DTypeFloat16, m.StoredDType, m.Name)
		}
	}
	// 70000 overflows float16.
	assert.Equal(t, 70000.0, loaded["adam_1/iterations"].Item())
}

func TestCorruptionDetected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleState(), Header{}, WriteOptions{}))
	data := buf.Bytes()

	corrupted := bytes.Clone(data)
	corrupted[len(corrupted)-1] ^= 0xFF
	_, _, err := Read(bytes.NewReader(corrupted), ReaderOptions{})
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	_, _, err = Read(bytes.NewReader(corrupted), ReaderOptions{SkipChecksumValidation: true})
	assert.NoError(t, err)

	badMagic := bytes.Clone(data)
	copy(badMagic, "NROB")
	_, _, err = Read(bytes.NewReader(badMagic), ReaderOptions{})
	assert.ErrorIs(t, err, ErrInvalidMagic)

	badVersion := bytes.Clone(data)
	binary.LittleEndian.PutUint32(badVersion[4:8], 1)
	_, _, err = Read(bytes.NewReader(badVersion), ReaderOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, _, err = Read(bytes.NewReader(data[:len(data)-10]), ReaderOptions{})
	assert.Error(t, err)
}

func TestRejectsInvalidNames(t *testing.T) {
	state := map[string]*tensor.RawTensor{"../escape": tensor.Scalar(1, tensor.Float32)}
	assert.Error(t, Write(&bytes.Buffer{}, state, Header{}, WriteOptions{}))
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.born")
	require.NoError(t, Save(path, sampleState(), Header{ModelType: "ppo"}, WriteOptions{}))

	entries := must.M1(os.ReadDir(dir))
	assert.Len(t, entries, 1, "temporary file must be renamed")

	state, header, err := Load(path, ReaderOptions{})
	require.NoError(t, err)
	assert.Len(t, state, 5)
	assert.Equal(t, "ppo", header.ModelType)

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Len(t, h.Tensors, 5)

	_, _, err = Load(filepath.Join(dir, "missing.born"), ReaderOptions{})
	assert.Error(t, err)
}

func TestSafeTensors(t *testing.T) {
	var buf bytes.Buffer
	state := sampleState()
	require.NoError(t, WriteSafeTensorsTo(&buf, state, map[string]string{"format": "pt"}, WriteOptions{HalfPrecision: true}))

	data := buf.Bytes()
	headerSize := binary.LittleEndian.Uint64(data[:8])
	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data[8:8+headerSize], &header))
	assert.Contains(t, header, "__metadata__")

	var kernel SafeTensorHeader
	require.NoError(t, json.Unmarshal(header["dense_1/kernel"], &kernel))
	assert.Equal(t, "F16", kernel.DType)
	assert.Equal(t, []int64{2, 3}, kernel.Shape)
	assert.Equal(t, int64(12), kernel.DataOffsets[1]-kernel.DataOffsets[0])

	var steps SafeTensorHeader
	require.NoError(t, json.Unmarshal(header["steps"], &steps))
	assert.Equal(t, "I64", steps.DType)

	// The data section holds every tensor back to back.
	var total int64
	for name := range state {
		var h SafeTensorHeader
		require.NoError(t, json.Unmarshal(header[name], &h))
		total += h.DataOffsets[1] - h.DataOffsets[0]
	}
	assert.Equal(t, int64(len(data))-8-int64(headerSize), total)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, WriteSafeTensors(path, state, nil, WriteOptions{}))
	assert.FileExists(t, path)
}

func TestReadSafeTensors(t *testing.T) {
	state := sampleState()
	for _, half := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, WriteSafeTensorsTo(&buf, state, map[string]string{"brain": "CartPoleBrain"}, WriteOptions{HalfPrecision: half}))
		got, metadata, err := ReadSafeTensorsFrom(&buf)
		require.NoError(t, err)
		assert.Equal(t, "CartPoleBrain", metadata["brain"])
		require.Len(t, got, len(state))
		assert.Equal(t, []int64{7, 7}, got["steps"].AsInt64())
		assert.Equal(t, tensor.Shape{2, 3}, got["dense_1/kernel"].Shape())
		// All sample values are exact in float16.
		assert.Equal(t, state["dense_1/kernel"].Float64s(), got["dense_1/kernel"].Float64s())
		if half {
			assert.Equal(t, tensor.Float32, got["ppo/log_std"].DType())
		} else {
			assert.Equal(t, tensor.Float64, got["ppo/log_std"].DType())
		}
	}

	_, _, err := ReadSafeTensorsFrom(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}
