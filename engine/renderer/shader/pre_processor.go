// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations and replaces them with injected chunk source,
// per-variant constants or generated uniform declarations, collecting the uniform
// declarations it generated along the way.
//
// The pre-processor maintains two registries:
//   - chunkRegistry: maps AnnotationArg keys to embedded WGSL chunks and, for struct
//     chunks, their WGSL type names.
//   - addressSpaceRegistry: maps address space argument keys to WGSL var<> syntax strings.
package shader

import (
	_ "embed"
	"fmt"
	"strings"
)

var (
	//go:embed assets/light.wgsl
	lightSource string
	//go:embed assets/frame.wgsl
	frameSource string
	//go:embed assets/object.wgsl
	objectSource string
	//go:embed assets/combine_params.wgsl
	combineParamsSource string
	//go:embed assets/post_params.wgsl
	postParamsSource string
	//go:embed assets/geometry.wgsl
	geometrySource string
	//go:embed assets/fullscreen.wgsl
	fullscreenSource string
	//go:embed assets/lighting.wgsl
	lightingSource string
	//go:embed assets/oit.wgsl
	oitSource string
)

// registryEntry pairs an embedded WGSL chunk with the WGSL type name it declares,
// empty for chunks that are not uniform structs.
type registryEntry struct {
	// Source is the raw WGSL text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations (e.g. "Frame").
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	chunkRegistry        map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates AnnotationTypeBindingGroup annotations during a Process
	// call. Reset at the start of each Process invocation.
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations.
type PreProcessor interface {
	// Process pre-processes source for one variant. Include annotations are replaced
	// with chunk source, define annotations with constants taken from defines, group
	// annotations with @group/@binding declarations; if/endif blocks are kept or
	// dropped according to defines.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code
	//   - defines: the variant's define values, keyed by name
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if any annotation is malformed, references an unknown chunk or
	//     names a define the variant does not provide
	Process(source string, defines map[string]string) (string, error)

	// Declarations returns the group annotations collected during the most recent call
	// to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with every chunk and address space registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		chunkRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgLight:      {Source: lightSource, Type: "Light"},
			AnnotationArgFrame:      {Source: frameSource, Type: "Frame"},
			AnnotationArgObject:     {Source: objectSource, Type: "Object"},
			AnnotationArgCombine:    {Source: combineParamsSource, Type: "Combine"},
			AnnotationArgPost:       {Source: postParamsSource, Type: "Post"},
			annotationArgGeometry:   {Source: geometrySource},
			annotationArgFullscreen: {Source: fullscreenSource},
			annotationArgLighting:   {Source: lightingSource},
			annotationArgOIT:        {Source: oitSource},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform: "var<uniform>",
		},
	}
}

func (p *preProcessor) Process(source string, defines map[string]string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	skipping := false
	openIf := 0
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			if !skipping {
				out = append(out, line)
			}
			continue
		}

		switch a.Type {
		case annotationTypeIf:
			if openIf != 0 {
				return "", fmt.Errorf("line %d: nested @oxy:if is not supported", i+1)
			}
			openIf = i + 1
			skipping = !enabled(defines[string(a.Args[0])])
			continue
		case annotationTypeEndIf:
			if openIf == 0 {
				return "", fmt.Errorf("line %d: @oxy:endif without @oxy:if", i+1)
			}
			openIf = 0
			skipping = false
			continue
		}
		if skipping {
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			entry, ok := p.chunkRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, a.Args[0])
			}
			out = append(out, entry.Source)
		case annotationTypeDefine:
			value, ok := defines[string(a.Args[0])]
			if !ok {
				return "", fmt.Errorf("line %d: no value for @oxy:define %s", i+1, a.Args[0])
			}
			out = append(out, fmt.Sprintf("const %s: %s = %s;", a.Args[0], a.Args[1], value))
		case AnnotationTypeBindingGroup:
			addrSpace := p.addressSpaceRegistry[a.Args[0]]
			entry := p.chunkRegistry[a.Args[2]]
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addrSpace, a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	if openIf != 0 {
		return "", fmt.Errorf("line %d: @oxy:if without @oxy:endif", openIf)
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

func enabled(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "0", "0u", "false":
		return false
	default:
		return true
	}
}
