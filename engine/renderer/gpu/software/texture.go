package software

import (
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// texture stores every format as four float32 channels per texel. Single channel formats
// keep their value in R and read back as (r, 0, 0, 1).
type texture struct {
	device *Device
	desc   gpu.TextureDescriptor
	data   []mgl32.Vec4
	state  gpu.ResourceState

	released atomic.Bool
}

var _ gpu.Texture = &texture{}

func (t *texture) Label() string                    { return t.desc.Label }
func (t *texture) Size() gpu.Size                   { return t.desc.Size }
func (t *texture) Layers() int                      { return t.desc.Layers }
func (t *texture) Format() gpu.TextureFormat        { return t.desc.Format }
func (t *texture) Usage() gpu.TextureUsage          { return t.desc.Usage }
func (t *texture) ViewDimension() gpu.ViewDimension { return t.desc.ViewDimension }
func (t *texture) Released() bool                   { return t.released.Load() }

func (t *texture) State() gpu.ResourceState {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	return t.state
}

func (t *texture) Release() {
	if t.released.Swap(true) {
		return
	}
	t.device.free(t)
}

func (t *texture) layerSize() int {
	return t.desc.Size.Width * t.desc.Size.Height
}

func (t *texture) index(x, y, layer int) (int, bool) {
	s := t.desc.Size
	if t.data == nil || x < 0 || y < 0 || x >= s.Width || y >= s.Height || layer < 0 || layer >= t.desc.Layers {
		return 0, false
	}
	return layer*t.layerSize() + y*s.Width + x, true
}

func (t *texture) channels() int {
	switch t.desc.Format {
	case gpu.TextureFormatR16Float, gpu.TextureFormatR32Float, gpu.TextureFormatDepth32Float:
		return 1
	default:
		return 4
	}
}

// encode applies the storage precision of the format.
func (t *texture) encode(v mgl32.Vec4) mgl32.Vec4 {
	if t.channels() == 1 {
		return mgl32.Vec4{v.X(), 0, 0, 1}
	}
	if t.desc.Format == gpu.TextureFormatRGBA8Unorm {
		for i := range v {
			v[i] = math32.Round(min(max(v[i], 0), 1)*255) / 255
		}
	}
	return v
}

func (t *texture) load(x, y, layer int) mgl32.Vec4 {
	i, ok := t.index(x, y, layer)
	if !ok {
		return mgl32.Vec4{}
	}
	return t.data[i]
}

func (t *texture) store(x, y, layer int, v mgl32.Vec4) {
	if i, ok := t.index(x, y, layer); ok {
		t.data[i] = t.encode(v)
	}
}

func (t *texture) fill(layer int, v mgl32.Vec4) {
	if t.data == nil {
		return
	}
	v = t.encode(v)
	if layer == gpu.AllLayers {
		for i := range t.data {
			t.data[i] = v
		}
		return
	}
	n := t.layerSize()
	layerData := t.data[layer*n : (layer+1)*n]
	for i := range layerData {
		layerData[i] = v
	}
}

// texelView adapts a bound texture to the reader used by the reference shading code.
type texelView struct {
	t *texture
}

func (v texelView) Width() int                      { return v.t.desc.Size.Width }
func (v texelView) Height() int                     { return v.t.desc.Size.Height }
func (v texelView) Load(x, y, layer int) mgl32.Vec4 { return v.t.load(x, y, layer) }
