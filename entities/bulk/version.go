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
	"fmt"
	"strings"
)

// Version sentinels. Real versions start at 1.
const (
	MatchAny int64 = -3
	NotSet   int64 = -2
	NotFound int64 = -1
)

// VersionType decides how a requested version is checked against the
// stored one and which version a successful write produces
type VersionType int

const (
	VersionInternal VersionType = iota
	VersionExternal
	VersionExternalGTE
	VersionForce
)

func (v VersionType) String() string {
	switch v {
	case VersionInternal:
		return "internal"
	case VersionExternal:
		return "external"
	case VersionExternalGTE:
		return "external_gte"
	case VersionForce:
		return "force"
	default:
		return fmt.Sprintf("version_type(%d)", int(v))
	}
}

func ParseVersionType(s string) (VersionType, error) {
	switch strings.ToLower(s) {
	case "internal":
		return VersionInternal, nil
	case "external", "external_gt":
		return VersionExternal, nil
	case "external_gte":
		return VersionExternalGTE, nil
	case "force":
		return VersionForce, nil
	default:
		return VersionInternal, fmt.Errorf("no version type match [%s]", s)
	}
}

func (v VersionType) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *VersionType) UnmarshalText(b []byte) error {
	parsed, err := ParseVersionType(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// IsVersionConflictForWrites reports whether a write that expects version
// expected must be rejected when the stored version is current
func (v VersionType) IsVersionConflictForWrites(current, expected int64) bool {
	if current == NotSet {
		return false
	}
	switch v {
	case VersionInternal:
		if expected == MatchAny {
			return false
		}
		if current == NotFound {
			return true
		}
		return current != expected
	case VersionExternal:
		if current == NotFound {
			return false
		}
		if expected == MatchAny {
			return true
		}
		return current >= expected
	case VersionExternalGTE:
		if current == NotFound {
			return false
		}
		if expected == MatchAny {
			return true
		}
		return current > expected
	default:
		return false
	}
}

// UpdateVersion is the version a write produces
func (v VersionType) UpdateVersion(current, expected int64) int64 {
	if v == VersionInternal {
		if current == NotSet || current == NotFound {
			return 1
		}
		return current + 1
	}
	return expected
}

// ValidateForWrites reports whether version may be requested with v
func (v VersionType) ValidateForWrites(version int64) bool {
	if v == VersionInternal {
		return version > 0 || version == MatchAny
	}
	return version >= 0
}

// ForReplication is the version type a replica applies the primary's
// decision with. Replicas never assign versions themselves.
func (v VersionType) ForReplication() VersionType {
	if v == VersionInternal {
		return VersionExternal
	}
	return v
}
