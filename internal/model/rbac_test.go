package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionName(t *testing.T) {
	assert.Equal(t, "read:product", PermissionName("read", "product"))
	assert.Equal(t, "manage:*", PermissionName("manage", "*"))
}

func TestPermissionMatches(t *testing.T) {
	readProduct := Permission{Name: "read:product", Resource: "product", Action: "read"}
	manageAll := Permission{Name: "manage:*", Resource: "*", Action: "manage"}

	tests := []struct {
		name    string
		perm    Permission
		pattern string
		want    bool
	}{
		{"exact match", readProduct, "read:product", true},
		{"different action", readProduct, "update:product", false},
		{"different resource", readProduct, "read:order", false},
		{"wildcard action", readProduct, "*:product", true},
		{"wildcard resource", readProduct, "read:*", true},
		{"full wildcard", readProduct, "*:*", true},
		{"no separator", readProduct, "readproduct", false},
		{"empty pattern", readProduct, "", false},
		{"stored wildcard matches itself", manageAll, "manage:*", true},
		{"stored wildcard does not expand to concrete patterns", manageAll, "manage:role", false},
		{"stored wildcard under full wildcard", manageAll, "*:*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.perm.Matches(tt.pattern))
		})
	}
}
