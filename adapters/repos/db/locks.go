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

package db

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

const lockStripes = 64

// stripedLocks serializes writes to the same document without a lock per
// document
type stripedLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLocks) lock(key []byte) func() {
	m := &l.stripes[murmur3.Sum32(key)%lockStripes]
	m.Lock()
	return m.Unlock
}
