package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrgFilter(t *testing.T) {
	assert.Equal(t, []string{"OrgA"}, ParseOrgFilter("OrgA"))
	assert.Equal(t, []string{"OrgA", "OrgB"}, ParseOrgFilter([]any{"OrgA", " OrgB ", 7, ""}))
	assert.Equal(t, []string{"OrgA"}, ParseOrgFilter([]string{"OrgA"}))
	assert.Nil(t, ParseOrgFilter(nil))
	assert.Nil(t, ParseOrgFilter("  "))
	assert.Nil(t, ParseOrgFilter(12))
}

func TestOverlayDefaults(t *testing.T) {
	var o Overlay
	assert.True(t, o.IsDefault())
	assert.Equal(t, "x", o.Get("missing", "x"))
	assert.False(t, o.Has("missing"))
	assert.False(t, o.ClaimsOrg("OrgA"))

	o = NewOverlay(&Microsite{Key: "k", Values: map[string]any{OrgFilterKey: []any{"OrgA"}}})
	assert.False(t, o.IsDefault())
	assert.True(t, o.ClaimsOrg("OrgA"))
}
