package batch

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUInstanceDataSource is the canonical WGSL definition of the InstanceData struct.
// Matches GPUInstanceData layout exactly (80 bytes, std430 aligned).
//
//go:embed assets/instance_data.wgsl
var GPUInstanceDataSource string

// GPUInstanceDataSize is the marshaled size of one GPUInstanceData.
const GPUInstanceDataSize = 80

// GPUInstanceData is the GPU-aligned representation of one batched instance.
// Size: 80 bytes (mat4x4<f32> + f32 alpha padded to a 16 byte boundary).
type GPUInstanceData struct {
	Model [16]float32 // offset  0: model-to-world matrix, column major (64 bytes)
	Alpha float32     // offset 64: opacity in [0,1]
	_pad  [3]float32  // offset 68: std430 struct alignment
}

// Size returns the size of the GPUInstanceData struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUInstanceData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUInstanceData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload.
func (g *GPUInstanceData) Marshal() []byte {
	buf := make([]byte, GPUInstanceDataSize)
	g.marshalInto(buf)
	return buf
}

func (g *GPUInstanceData) marshalInto(buf []byte) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(g.Model[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(g.Alpha))
	clear(buf[68:GPUInstanceDataSize])
}
