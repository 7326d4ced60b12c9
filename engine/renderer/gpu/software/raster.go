package software

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-technique/engine/renderer/gpu"
)

// varyingCount is the number of interpolated floats a geometry vertex carries:
// world position, normal and view depth.
const varyingCount = 7

type varyings [varyingCount]float32

// clipVertex is a vertex after the vertex stage.
type clipVertex struct {
	clip mgl32.Vec4
	v    varyings
}

// screenVertex is a clipped vertex after the perspective divide and viewport transform.
type screenVertex struct {
	x, y, z float32
	invW    float32
	v       varyings
}

// fragment is one covered pixel centre handed to the fragment stage.
type fragment struct {
	x, y  int
	depth float32
	v     varyings
}

type rasterState struct {
	width, height int
	cull          gpu.CullMode
	bias          float32
	slopeScale    float32
}

// depthBiasUnit is the minimum resolvable difference of a 32-bit float depth near 1.
const depthBiasUnit = 1.0 / (1 << 24)

func lerpVertex(a, b clipVertex, t float32) clipVertex {
	out := clipVertex{clip: a.clip.Add(b.clip.Sub(a.clip).Mul(t))}
	for i := range out.v {
		out.v[i] = a.v[i] + (b.v[i]-a.v[i])*t
	}
	return out
}

// clipNear clips a triangle against the z >= 0 clip plane, returning up to four vertices.
func clipNear(tri [3]clipVertex) []clipVertex {
	out := make([]clipVertex, 0, 4)
	for i := range tri {
		a, b := tri[i], tri[(i+1)%3]
		da, db := a.clip.Z(), b.clip.Z()
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, lerpVertex(a, b, da/(da-db)))
		}
	}
	return out
}

func (rs rasterState) toScreen(c clipVertex) (screenVertex, bool) {
	w := c.clip.W()
	if w <= 1e-7 {
		return screenVertex{}, false
	}
	inv := 1 / w
	nx, ny, nz := c.clip.X()*inv, c.clip.Y()*inv, c.clip.Z()*inv
	return screenVertex{
		x:    (nx*0.5 + 0.5) * float32(rs.width),
		y:    (0.5 - ny*0.5) * float32(rs.height),
		z:    nz,
		invW: inv,
		v:    c.v,
	}, true
}

// rasterTriangle clips, culls and scans one triangle, calling emit for every covered pixel centre.
func (rs rasterState) rasterTriangle(tri [3]clipVertex, emit func(fragment)) {
	poly := clipNear(tri)
	if len(poly) < 3 {
		return
	}
	screen := make([]screenVertex, 0, len(poly))
	for _, c := range poly {
		s, ok := rs.toScreen(c)
		if !ok {
			return
		}
		screen = append(screen, s)
	}
	for i := 1; i+1 < len(screen); i++ {
		rs.scan(screen[0], screen[i], screen[i+1], emit)
	}
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// ownsEdge breaks ties for pixel centres exactly on an edge so that two triangles sharing
// the edge, which walk it in opposite directions, never both cover the pixel.
func ownsEdge(a, b screenVertex) bool {
	dy := b.y - a.y
	return dy > 0 || (dy == 0 && b.x < a.x)
}

func (rs rasterState) scan(a, b, c screenVertex, emit func(fragment)) {
	area := edge(a.x, a.y, b.x, b.y, c.x, c.y)
	if area == 0 {
		return
	}
	// screen y points down, so a counter-clockwise (front) triangle in NDC has negative area here
	front := area < 0
	if (rs.cull == gpu.CullModeBack && !front) || (rs.cull == gpu.CullModeFront && front) {
		return
	}
	if area < 0 {
		b, c = c, b
		area = -area
	}

	// depth plane gradients for slope-scaled bias
	dzdx := ((b.z-a.z)*(c.y-a.y) - (c.z-a.z)*(b.y-a.y)) / area
	dzdy := ((c.z-a.z)*(b.x-a.x) - (b.z-a.z)*(c.x-a.x)) / area
	bias := rs.bias*depthBiasUnit + rs.slopeScale*max(math32.Abs(dzdx), math32.Abs(dzdy))

	minX := max(int(math32.Floor(min(a.x, b.x, c.x))), 0)
	maxX := min(int(math32.Ceil(max(a.x, b.x, c.x))), rs.width-1)
	minY := max(int(math32.Floor(min(a.y, b.y, c.y))), 0)
	maxY := min(int(math32.Ceil(max(a.y, b.y, c.y))), rs.height-1)

	ownBC, ownCA, ownAB := ownsEdge(b, c), ownsEdge(c, a), ownsEdge(a, b)
	for py := minY; py <= maxY; py++ {
		fy := float32(py) + 0.5
		for px := minX; px <= maxX; px++ {
			fx := float32(px) + 0.5
			w0 := edge(b.x, b.y, c.x, c.y, fx, fy)
			w1 := edge(c.x, c.y, a.x, a.y, fx, fy)
			w2 := edge(a.x, a.y, b.x, b.y, fx, fy)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			if (w0 == 0 && !ownBC) || (w1 == 0 && !ownCA) || (w2 == 0 && !ownAB) {
				continue
			}
			l0, l1, l2 := w0/area, w1/area, w2/area
			z := l0*a.z + l1*b.z + l2*c.z + bias
			if z < 0 || z > 1 {
				continue
			}
			p0, p1, p2 := l0*a.invW, l1*b.invW, l2*c.invW
			norm := 1 / (p0 + p1 + p2)
			f := fragment{x: px, y: py, depth: z}
			for i := range f.v {
				f.v[i] = (p0*a.v[i] + p1*b.v[i] + p2*c.v[i]) * norm
			}
			emit(f)
		}
	}
}

// rasterPoint covers the single pixel containing the projected vertex.
func (rs rasterState) rasterPoint(c clipVertex, emit func(fragment)) {
	if c.clip.Z() < 0 || c.clip.Z() > c.clip.W() {
		return
	}
	s, ok := rs.toScreen(c)
	if !ok {
		return
	}
	px, py := int(math32.Floor(s.x)), int(math32.Floor(s.y))
	if px < 0 || py < 0 || px >= rs.width || py >= rs.height {
		return
	}
	emit(fragment{x: px, y: py, depth: s.z, v: s.v})
}
