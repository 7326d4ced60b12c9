// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive shared chunk injection, per-variant constants, conditional
// blocks and uniform binding declarations.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects a registered WGSL chunk (a struct or a shared
	// function library) at the annotation site.
	//
	// Syntax: //@oxy:include <chunk>
	//
	// Example: //@oxy:include frame
	annotationTypeInclude AnnotationType = "include"

	// annotationTypeDefine emits a module-scope constant whose value comes from the
	// variant being compiled. A define without a value for the variant is an error.
	//
	// Syntax: //@oxy:define <NAME> <wgsl_type>
	//
	// Example: //@oxy:define FOG_MODE u32
	annotationTypeDefine AnnotationType = "define"

	// annotationTypeIf keeps the lines up to the matching endif only when the variant
	// defines NAME with a value other than "0" or "false". Blocks do not nest.
	//
	// Syntax: //@oxy:if <NAME>
	annotationTypeIf AnnotationType = "if"

	// annotationTypeEndIf closes an if block.
	//
	// Syntax: //@oxy:endif
	annotationTypeEndIf AnnotationType = "endif"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration
	// for a registered uniform struct and appends an Annotation to the PreProcessor's
	// declarations list.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <struct>
	//
	// Example: //@oxy:group 0 0 uniform frame frame
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = chunk key
	//   - define:  [0] = constant name, [1] = WGSL type
	//   - if:      [0] = define name
	//   - group:   [0] = address space, [1] = var name, [2] = struct key
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Group is the @group index for group annotations. Nil otherwise.
	Group *int

	// Binding is the @binding index for group annotations. Nil otherwise.
	Binding *int
}

// AnnotationArg is a typed string used as an argument in annotations.
type AnnotationArg string

// ── Chunk arguments ─────────────────────────────────────────────────────────────
// Struct chunks mirror the Go uniform types in uniforms.go byte for byte.

const (
	// AnnotationArgLight identifies the Light struct (see LightData).
	AnnotationArgLight AnnotationArg = "light"

	// AnnotationArgFrame identifies the Frame struct (see FrameUniforms).
	AnnotationArgFrame AnnotationArg = "frame"

	// AnnotationArgObject identifies the Object struct (see ObjectUniforms).
	AnnotationArgObject AnnotationArg = "object"

	// AnnotationArgCombine identifies the Combine struct (see CombineUniforms).
	AnnotationArgCombine AnnotationArg = "combine_params"

	// AnnotationArgPost identifies the Post struct (see PostUniforms).
	AnnotationArgPost AnnotationArg = "post_params"

	// annotationArgGeometry injects the shared vertex stage of geometry passes.
	annotationArgGeometry AnnotationArg = "geometry"

	// annotationArgFullscreen injects the fullscreen triangle vertex stage.
	annotationArgFullscreen AnnotationArg = "fullscreen"

	// annotationArgLighting injects light evaluation and shadow lookups. Requires
	// frame, dir_shadow, spot_shadow and point_shadow to be declared first.
	annotationArgLighting AnnotationArg = "lighting"

	// annotationArgOIT injects the weighted blended OIT weight policies.
	annotationArgOIT AnnotationArg = "oit"
)

// validStructTypes are the chunk keys that can appear as the type of a group annotation.
var validStructTypes = []AnnotationArg{
	AnnotationArgLight,
	AnnotationArgFrame,
	AnnotationArgObject,
	AnnotationArgCombine,
	AnnotationArgPost,
}

// validChunks are the chunk keys accepted by include annotations.
var validChunks = append(slices.Clone(validStructTypes),
	annotationArgGeometry,
	annotationArgFullscreen,
	annotationArgLighting,
	annotationArgOIT,
)

// ── Address space arguments ─────────────────────────────────────────────────────

const (
	annotationArgStorageTypeUniform AnnotationArg = "uniform"
)

var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
}

// parseAnnotation parses a single line of WGSL source. It returns nil, nil for lines
// that are not annotations.
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validChunks, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown chunk %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(annotationTypeDefine):
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy define annotation requires a name and a type", lineNum)
		}
		return &Annotation{
			Type: annotationTypeDefine,
			Args: []AnnotationArg{AnnotationArg(args[1]), AnnotationArg(args[2])},
			Line: lineNum,
		}, nil
	case string(annotationTypeIf):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy if annotation requires exactly one define name", lineNum)
		}
		return &Annotation{
			Type: annotationTypeIf,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(annotationTypeEndIf):
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy endif annotation takes no arguments", lineNum)
		}
		return &Annotation{Type: annotationTypeEndIf, Line: lineNum}, nil
	case string(AnnotationTypeBindingGroup):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires exactly five arguments (group, binding, address space, var name, struct)", lineNum)
		}
		groupInt, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q in @oxy group annotation: %v", lineNum, args[1], err)
		}
		bindingInt, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @oxy group annotation: %v", lineNum, args[2], err)
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[5])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, args[5])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation %q", lineNum, args[0])
	}
}
