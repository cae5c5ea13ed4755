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

// ConsistencyLevel is the number of active shard copies a write requires
// before the primary accepts it
type ConsistencyLevel string

const (
	ConsistencyDefault ConsistencyLevel = ""
	ConsistencyOne     ConsistencyLevel = "one"
	ConsistencyQuorum  ConsistencyLevel = "quorum"
	ConsistencyAll     ConsistencyLevel = "all"
)

func ParseConsistencyLevel(s string) (ConsistencyLevel, error) {
	switch l := ConsistencyLevel(strings.ToLower(s)); l {
	case ConsistencyDefault, ConsistencyOne, ConsistencyQuorum, ConsistencyAll:
		return l, nil
	default:
		return "", fmt.Errorf("no write consistency match [%s]", s)
	}
}

// Required returns the number of active copies needed out of copies. A
// quorum of two copies is one so that a single replica can be restarted.
func (l ConsistencyLevel) Required(copies int) int {
	switch l {
	case ConsistencyOne:
		return 1
	case ConsistencyAll:
		return copies
	default:
		if copies > 2 {
			return copies/2 + 1
		}
		return 1
	}
}
