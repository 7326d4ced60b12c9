package window

import "github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"

// WindowBuilderOption configures a window before it is created.
type WindowBuilderOption func(w *viewerWindow)

// WithTitle sets the window title.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *viewerWindow) {
		w.title = title
	}
}

// WithSize sets the requested client size. The framebuffer may differ on high-DPI
// displays; Size reports the actual value.
//
// Parameters:
//   - size: the client size in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(size gpu.Size) WindowBuilderOption {
	return func(w *viewerWindow) {
		w.size = size
	}
}
