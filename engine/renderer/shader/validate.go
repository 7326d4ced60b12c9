package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V binary.
const spirvMagic = 0x07230203

// Validate compiles a processed module to SPIR-V with naga and returns the binary.
// The WebGPU backend compiles WGSL itself; this catches source errors before any
// device exists.
//
// Parameters:
//   - source: processed WGSL source
//
// Returns:
//   - []byte: the SPIR-V binary
//   - error: the compiler error, or an error for malformed output
func Validate(source string) ([]byte, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirv) < 4 || binary.LittleEndian.Uint32(spirv) != spirvMagic {
		return nil, fmt.Errorf("compile shader: output is not SPIR-V")
	}
	return spirv, nil
}
