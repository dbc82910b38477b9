package serialization

import (
	"crypto/sha256"
	"time"

	"github.com/born-ml/agents/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2    // v2: fixed header with SHA-256 checksum
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Data type string constants for serialization.
const (
	DTypeFloat16 = "float16"
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeInt32   = "int32"
	DTypeInt64   = "int64"
	DTypeBool    = "bool"
)

// Flags for the .born format.
const (
	FlagHasCheckpoint uint32 = 1 << 1 // bit 1: trainer/optimizer state included
	FlagHasMetadata   uint32 = 1 << 2 // bit 2: custom metadata included
	FlagHalfPrecision uint32 = 1 << 3 // bit 3: some tensors stored as float16
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"`       // Version of the .born format
	Version       string            `json:"version"`              // Version of the library that wrote the file
	ModelType     string            `json:"model_type"`           // Type of model (e.g., "ppo")
	RunID         string            `json:"run_id,omitempty"`     // Identifier of the training run
	CreatedAt     time.Time         `json:"created_at"`           // When the file was created
	Tensors       []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata      map[string]string `json:"metadata"`             // Custom metadata
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"` // Training state (optional)
}

// CheckpointMeta contains training state information.
type CheckpointMeta struct {
	BrainName     string         `json:"brain_name"`
	Step          int            `json:"step"`
	MaxStep       int            `json:"max_step"`
	LastReward    float64        `json:"last_reward"`
	OptimizerType string         `json:"optimizer_type"`
	TrainerConfig map[string]any `json:"trainer_config,omitempty"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name        string `json:"name"`                   // Tensor name (e.g., "dense_1/kernel")
	DType       string `json:"dtype"`                  // Data type of the loaded tensor
	StoredDType string `json:"stored_dtype,omitempty"` // Data type on disk when different from DType
	Shape       []int  `json:"shape"`                  // Tensor shape
	Offset      int64  `json:"offset"`                 // Offset in the data section
	Size        int64  `json:"size"`                   // Size in bytes on disk
}

// storedDType returns the on-disk dtype name.
func (m TensorMeta) storedDType() string {
	if m.StoredDType != "" {
		return m.StoredDType
	}
	return m.DType
}

// dtypeToString converts tensor.DataType to string representation.
func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	case tensor.Int32:
		return DTypeInt32
	case tensor.Int64:
		return DTypeInt64
	case tensor.Bool:
		return DTypeBool
	default:
		return "unknown"
	}
}

// stringToDtype converts string representation to tensor.DataType.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	case DTypeInt32:
		return tensor.Int32, true
	case DTypeInt64:
		return tensor.Int64, true
	case DTypeBool:
		return tensor.Bool, true
	default:
		return 0, false
	}
}

// checksum computes the SHA-256 checksum of the tensor data.
func checksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// padding returns the number of bytes aligning pos to HeaderAlignment.
func padding(pos int64) int64 {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
