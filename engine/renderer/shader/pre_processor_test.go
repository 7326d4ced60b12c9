package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessIncludesAndGroups(t *testing.T) {
	pp := NewPreProcessor()
	src := strings.Join([]string{
		"//@oxy:include post_params",
		"//@oxy:group 0 0 uniform params post_params",
		"fn f() {}",
	}, "\n")

	out, err := pp.Process(src, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "struct Post {")
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> params: Post;")
	assert.NotContains(t, out, "@oxy:")

	decls := pp.Declarations()
	require.Len(t, decls, 1)
	assert.Equal(t, 0, *decls[0].Group)
}

func TestProcessDefineAndIf(t *testing.T) {
	pp := NewPreProcessor()
	src := strings.Join([]string{
		"//@oxy:define MODE u32",
		"//@oxy:if FOG",
		"let fogged = true;",
		"//@oxy:endif",
		"let always = true;",
	}, "\n")

	out, err := pp.Process(src, map[string]string{"MODE": "2u", "FOG": "1"})
	require.NoError(t, err)
	assert.Contains(t, out, "const MODE: u32 = 2u;")
	assert.Contains(t, out, "fogged")

	out, err = pp.Process(src, map[string]string{"MODE": "0u", "FOG": "0"})
	require.NoError(t, err)
	assert.NotContains(t, out, "fogged")
	assert.Contains(t, out, "always")
}

func TestProcessErrors(t *testing.T) {
	pp := NewPreProcessor()
	cases := map[string]string{
		"missing define": "//@oxy:define MODE u32",
		"unknown chunk":  "//@oxy:include nothing",
		"stray endif":    "//@oxy:endif",
		"open if":        "//@oxy:if FOG\nx",
		"nested if":      "//@oxy:if A\n//@oxy:if B\n//@oxy:endif\n//@oxy:endif",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := pp.Process(src, nil)
			assert.Error(t, err)
		})
	}
}
