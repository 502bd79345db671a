package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		target  string
		want    bool
	}{
		{"exact match", "platform.users.read", "platform.users.read", true},
		{"exact mismatch", "platform.users.read", "platform.users.write", false},
		{"super wildcard", "*", "platform.users.read", true},
		{"super wildcard malformed target", "*", "not-a-permission", true},
		{"module wildcard", "platform.*", "platform.users.read", true},
		{"module wildcard wrong module", "platform.*", "users.platform.read", false},
		{"module wildcard is not a suffix match", "platform.*", "platform", false},
		{"positional wildcard middle", "platform.*.read", "platform.users.read", true},
		{"positional wildcard mismatch", "platform.*.read", "platform.users.write", false},
		{"segment count mismatch", "a.*.c", "a.b.c.d", false},
		{"two segment pattern against two segment name", "a.*", "a.b", true},
		{"wildcard only in first position", "*.users.read", "platform.users.read", true},
		{"empty pattern", "", "platform.users.read", false},
		{"empty target", "platform.*", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(tc.pattern, tc.target))
		})
	}
}

func TestModuleWildcardRequiresExactlyTwoSegments(t *testing.T) {
	// The prefix rule applies only to two-segment patterns.
	assert.True(t, Matches("platform.*", "platform.audit.logs.read"))

	// Three-segment patterns ending in "*" are positional, not prefix.
	assert.False(t, Matches("platform.audit.*", "platform.audit.logs.read"))
	assert.True(t, Matches("platform.audit.*", "platform.audit.read"))
}

func TestValidatePermissionName(t *testing.T) {
	assert.True(t, ValidatePermissionName("platform.users.read"))
	assert.False(t, ValidatePermissionName("platform.users"))
	assert.False(t, ValidatePermissionName("platform.users.read.all"))
	assert.False(t, ValidatePermissionName("platform..read"))
	assert.False(t, ValidatePermissionName(""))
	assert.False(t, ValidatePermissionName("..."))
}

func TestParsePermissionName(t *testing.T) {
	parts := ParsePermissionName("tenant.tags.create")
	if assert.NotNil(t, parts) {
		assert.Equal(t, "tenant", parts.Module)
		assert.Equal(t, "tags", parts.Resource)
		assert.Equal(t, "create", parts.Action)
	}
	assert.Nil(t, ParsePermissionName("tenant.tags"))
	assert.Nil(t, ParsePermissionName("tenant.tags.create.bulk"))
}
