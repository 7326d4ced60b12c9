package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindings owns the uniform buffers and bind groups recorded into one command buffer.
// Nothing is reused between frames: every draw writes its own buffer, and all of them are
// released once the command buffer has been queued.
type bindings struct {
	// label is a debug label, the owning encoder's.
	label string

	buffers []*wgpu.Buffer
	groups  []*wgpu.BindGroup
}

// uniform uploads data into a new uniform buffer and wraps it in a bind group on the shared
// uniform layout. The device lock must be held.
func (b *bindings) uniform(d *Device, name string, data []byte) (*wgpu.BindGroup, error) {
	layout, err := d.uniformLayout()
	if err != nil {
		return nil, err
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.label + " " + name + " Buffer",
		Size:  uint64(len(data)),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%s uniform buffer: %w", name, err)
	}
	b.buffers = append(b.buffers, buf)
	d.queue.WriteBuffer(buf, 0, data)

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  b.label + " " + name + " Bind Group",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s bind group: %w", name, err)
	}
	b.groups = append(b.groups, bg)
	return bg, nil
}

// textures binds views in binding order on layout. The device lock must be held.
func (b *bindings) textures(d *Device, layout *wgpu.BindGroupLayout, views []*wgpu.TextureView) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(views))
	for i, v := range views {
		entries[i] = wgpu.BindGroupEntry{
			Binding:     uint32(i),
			TextureView: v,
		}
	}
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   b.label + " Texture Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("texture bind group: %w", err)
	}
	b.groups = append(b.groups, bg)
	return bg, nil
}

// Release frees every buffer and bind group.
func (b *bindings) Release() {
	for _, bg := range b.groups {
		bg.Release()
	}
	for _, buf := range b.buffers {
		buf.Release()
	}
	b.groups = nil
	b.buffers = nil
}
