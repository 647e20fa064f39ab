package fsaccess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		segs  []string
	}{
		{"empty string", "", "/", []string{}},
		{"root slash", "/", "/", []string{}},
		{"dot", ".", "/", []string{}},
		{"simple", "foo", "/foo", []string{"foo"}},
		{"leading slash", "/etc/nginx", "/etc/nginx", []string{"etc", "nginx"}},
		{"trailing slash", "etc/nginx/", "/etc/nginx", []string{"etc", "nginx"}},
		{"internal double slashes", "etc//nginx", "/etc/nginx", []string{"etc", "nginx"}},
		{"only slashes", "///", "/", []string{}},
		{"dot in middle", "a/./b", "/a/b", []string{"a", "b"}},
		{"dotdot in middle", "a/../b", "/b", []string{"b"}},
		{"dotdot above root", "/../../etc", "/etc", []string{"etc"}},
		{"dotdot only", "..", "/", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePath(tt.input)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.segs, got.Segments())
			assert.Equal(t, len(tt.segs) == 0, got.IsRoot())
		})
	}
}

func TestPathJoinDoesNotAlias(t *testing.T) {
	t.Parallel()

	base := ParsePath("/a/b")
	c := base.Join("c")
	d := base.Join("d")

	assert.Equal(t, "/a/b/c", c.String())
	assert.Equal(t, "/a/b/d", d.String())
	assert.Equal(t, "/a/b", base.String())
}

func TestPathParentBaseRel(t *testing.T) {
	t.Parallel()

	p := ParsePath("a/b/c")
	assert.Equal(t, "c", p.Base())
	assert.Equal(t, "/a/b", p.Parent().String())
	assert.Equal(t, "a/b/c", p.Rel())
	assert.Equal(t, 3, p.Len())

	assert.Equal(t, ".", Root().Rel())
	assert.Equal(t, "", Root().Base())
	assert.True(t, Root().Parent().IsRoot())
	assert.True(t, ParsePath("a").Parent().IsRoot())
}

func TestPathSegmentsIsCopy(t *testing.T) {
	t.Parallel()

	p := ParsePath("a/b")
	segs := p.Segments()
	segs[0] = "x"
	assert.Equal(t, "/a/b", p.String())
}
