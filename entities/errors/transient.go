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

package errors

import (
	"errors"
	"fmt"
)

// ErrNotPrimary is returned by a shard copy that lost its primary role
var ErrNotPrimary = errors.New("shard is not the primary")

// IsTransient reports whether err invalidates the current primary for the
// rest of the batch. Such errors are never recorded per item: the caller
// resends the whole batch instead.
func IsTransient(err error) bool {
	var e *ShardRelocatedError
	if errors.As(err, &e) {
		return true
	}
	return errors.Is(err, ErrNotPrimary)
}

func NewNotPrimary(index string, shard int) error {
	return fmt.Errorf("[%s][%d]: %w", index, shard, ErrNotPrimary)
}
