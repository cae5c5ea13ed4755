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

// Package translog holds the durability position type shared by the
// engine and the bulk executors.
package translog

import (
	"errors"
	"fmt"
)

var (
	ErrLocationUnset         = errors.New("next translog location can't be unset")
	ErrLocationNotIncreasing = errors.New("translog locations are not increasing")
)

// Location is a position in the append-only translog. The zero value is
// the unset location. Generations start at 1.
type Location struct {
	Generation int64 `json:"generation" msgpack:"generation"`
	Offset     int64 `json:"offset" msgpack:"offset"`
	Size       int   `json:"size" msgpack:"size"`
}

func (l Location) IsSet() bool {
	return l.Generation > 0
}

// Compare orders locations by generation, then by offset
func (l Location) Compare(o Location) int {
	switch {
	case l.Generation < o.Generation:
		return -1
	case l.Generation > o.Generation:
		return 1
	case l.Offset < o.Offset:
		return -1
	case l.Offset > o.Offset:
		return 1
	default:
		return 0
	}
}

func (l Location) Less(o Location) bool {
	return l.Compare(o) < 0
}

func (l Location) String() string {
	if !l.IsSet() {
		return "translog[unset]"
	}
	return fmt.Sprintf("translog[gen=%d offset=%d size=%d]", l.Generation, l.Offset, l.Size)
}

// LocationToSync moves the watermark forward to next. The log is a tape:
// syncing the highest location also syncs every location before it, even
// across generations, so only the maximum is kept.
func LocationToSync(current, next Location) (Location, error) {
	if !next.IsSet() {
		return current, ErrLocationUnset
	}
	if current.IsSet() && !current.Less(next) {
		return current, fmt.Errorf("%w: current %s, next %s", ErrLocationNotIncreasing, current, next)
	}
	return next, nil
}
