// Package serialization saves and loads named tensors (trainer checkpoints)
// in the .born format, and exports them as SafeTensors.
//
// The .born format (version 2) is a simple binary layout:
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00  Magic "BORN"
//	    0x04  Version (uint32 LE)
//	    0x08  Flags (uint32 LE)
//	    0x10  Header size (uint64 LE)
//	    0x18  Data size (uint64 LE)
//	    0x20  SHA-256 of the tensor data (32 bytes)
//	  [Header: JSON metadata]
//	  [Padding to 64 bytes]
//	  [Tensor data: raw little-endian bytes, sorted by tensor name]
//
// Floating point tensors may be stored as float16 to halve checkpoint size;
// they are converted back to their original dtype on load.
//
// Example usage:
//
//	// Save
//	state, _ := trainer.StateDict()
//	err := serialization.Save("cartpole.born", state, serialization.Header{ModelType: "ppo"}, serialization.WriteOptions{})
//
//	// Load
//	state, header, err := serialization.Load("cartpole.born", serialization.ReaderOptions{})
package serialization
