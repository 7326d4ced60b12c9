package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyF     = 70  // F key (ASCII), cycles the fog mode in the viewer
	KeyP     = 80  // P key (ASCII), toggles the profiler
	KeyT     = 84  // T key (ASCII), toggles shadow casting on the selected light
	KeySpace = 32  // Spacebar (ASCII), pauses the simulation
	KeyEsc   = 256 // Escape key (GLFW)

	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
)
