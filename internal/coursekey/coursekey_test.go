package coursekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Key
		wantErr bool
	}{
		{name: "versioned", raw: "course-v1:MITx+6.002x+2024_T1", want: Key{Org: "MITx", Course: "6.002x", Run: "2024_T1"}},
		{name: "slash", raw: "edX/DemoX/Demo_Course", want: Key{Org: "edX", Course: "DemoX", Run: "Demo_Course", deprecated: true}},
		{name: "trimmed", raw: "  course-v1:a+b+c ", want: Key{Org: "a", Course: "b", Run: "c"}},
		{name: "empty", raw: "", wantErr: true},
		{name: "missing run", raw: "course-v1:MITx+6.002x", wantErr: true},
		{name: "bad chars", raw: "course-v1:MI Tx+6.002x+run", wantErr: true},
		{name: "no separator", raw: "MITx", wantErr: true},
		{name: "too many slashes", raw: "a/b/c/d", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStringRoundTripsForm(t *testing.T) {
	assert.Equal(t, "course-v1:MITx+6.002x+2024", MustParse("course-v1:MITx+6.002x+2024").String())
	assert.Equal(t, "edX/DemoX/Demo", MustParse("edX/DemoX/Demo").String())
	assert.Equal(t, "", Key{}.String())
	assert.Equal(t, "6.002x/2024", MustParse("course-v1:MITx+6.002x+2024").Offering())
}

func TestFromPath(t *testing.T) {
	tests := []struct {
		path string
		org  string
		ok   bool
	}{
		{path: "/courses/course-v1:MITx+6.002x+2024/about", org: "MITx", ok: true},
		{path: "/courses/HarvardX/CS50/2024/info", org: "HarvardX", ok: true},
		{path: "/certificates/user/12/course/course-v1:BerkeleyX+CS169+2024", org: "BerkeleyX", ok: true},
		{path: "/certificates/user/12/course/BerkeleyX/CS169/2024", org: "BerkeleyX", ok: true},
		{path: "/dashboard", ok: false},
		{path: "/courses/", ok: false},
	}

	for _, tc := range tests {
		key, ok := FromPath(tc.path)
		assert.Equal(t, tc.ok, ok, tc.path)
		assert.Equal(t, tc.org, key.Org, tc.path)
	}
}
