package renderer

import (
	"fmt"
	"strings"
)

// BackendType identifies the gpu.Device implementation used by the Renderer.
type BackendType int

const (
	// BackendTypeSoftware selects the CPU reference device. It runs headless and supports
	// texel readback.
	BackendTypeSoftware BackendType = iota

	// BackendTypeWGPU selects the WebGPU device.
	BackendTypeWGPU
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeSoftware:
		return "software"
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return fmt.Sprintf("BackendType(%d)", int(b))
	}
}

// ParseBackendType resolves a configuration name, case-insensitively. The empty string
// is BackendTypeSoftware.
//
// Parameters:
//   - s: the backend name
//
// Returns:
//   - BackendType: the backend
//   - error: an error if the name is unknown
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "software":
		return BackendTypeSoftware, nil
	case "wgpu", "webgpu":
		return BackendTypeWGPU, nil
	default:
		return BackendTypeSoftware, fmt.Errorf("unknown renderer backend %q", s)
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)
