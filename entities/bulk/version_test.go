//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2025 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package bulk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionConflictForWrites(t *testing.T) {
	tests := []struct {
		name     string
		vt       VersionType
		current  int64
		expected int64
		conflict bool
	}{
		{"internal any on missing", VersionInternal, NotFound, MatchAny, false},
		{"internal any on existing", VersionInternal, 4, MatchAny, false},
		{"internal explicit on missing", VersionInternal, NotFound, 1, true},
		{"internal match", VersionInternal, 4, 4, false},
		{"internal mismatch", VersionInternal, 4, 5, true},
		{"internal not set", VersionInternal, NotSet, 5, false},
		{"external on missing", VersionExternal, NotFound, 3, false},
		{"external higher", VersionExternal, 4, 5, false},
		{"external equal", VersionExternal, 4, 4, true},
		{"external lower", VersionExternal, 4, 3, true},
		{"external gte equal", VersionExternalGTE, 4, 4, false},
		{"external gte lower", VersionExternalGTE, 4, 3, true},
		{"force lower", VersionForce, 4, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.conflict, tt.vt.IsVersionConflictForWrites(tt.current, tt.expected))
		})
	}
}

func TestUpdateVersion(t *testing.T) {
	assert.Equal(t, int64(1), VersionInternal.UpdateVersion(NotFound, MatchAny))
	assert.Equal(t, int64(1), VersionInternal.UpdateVersion(NotSet, MatchAny))
	assert.Equal(t, int64(5), VersionInternal.UpdateVersion(4, 4))
	assert.Equal(t, int64(9), VersionExternal.UpdateVersion(4, 9))
	assert.Equal(t, int64(2), VersionForce.UpdateVersion(4, 2))
}

func TestVersionTypeForReplication(t *testing.T) {
	assert.Equal(t, VersionExternal, VersionInternal.ForReplication())
	assert.Equal(t, VersionExternal, VersionExternal.ForReplication())
	assert.Equal(t, VersionExternalGTE, VersionExternalGTE.ForReplication())
	assert.Equal(t, VersionForce, VersionForce.ForReplication())
}

func TestParseVersionType(t *testing.T) {
	for in, want := range map[string]VersionType{
		"internal":     VersionInternal,
		"EXTERNAL":     VersionExternal,
		"external_gt":  VersionExternal,
		"external_gte": VersionExternalGTE,
		"force":        VersionForce,
	} {
		got, err := ParseVersionType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseVersionType("latest")
	assert.Error(t, err)
}

func TestValidateForWrites(t *testing.T) {
	assert.True(t, VersionInternal.ValidateForWrites(MatchAny))
	assert.True(t, VersionInternal.ValidateForWrites(1))
	assert.False(t, VersionInternal.ValidateForWrites(0))
	assert.True(t, VersionExternal.ValidateForWrites(0))
	assert.False(t, VersionExternal.ValidateForWrites(MatchAny))
	assert.False(t, VersionForce.ValidateForWrites(MatchAny))
}
