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
	"context"

	"github.com/weaviate/bulkshard/entities/bulk"
)

// TranslationKind is the write an update resolves to
type TranslationKind int

const (
	TranslateUpsert TranslationKind = iota
	TranslateIndex
	TranslateDelete
	TranslateNoop
)

func (k TranslationKind) String() string {
	switch k {
	case TranslateUpsert:
		return "upsert"
	case TranslateIndex:
		return "index"
	case TranslateDelete:
		return "delete"
	case TranslateNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// Translation is the resolved form of an update. Exactly one of Index,
// Delete or Noop is set, matching Kind.
type Translation struct {
	Kind   TranslationKind
	Index  *bulk.IndexOp
	Delete *bulk.DeleteOp
	Noop   *bulk.Success
	// Source is the document after the update. Used for get results.
	Source []byte
}

// Translator turns an update into the write it stands for, using the
// current state of the document. A stale read surfaces later as a version
// conflict of the translated write.
type Translator interface {
	Translate(ctx context.Context, op *bulk.UpdateOp, docs Getter) (*Translation, error)
	// GetResult extracts the fields an update asked for from source. It
	// returns nil when no fields were requested.
	GetResult(op *bulk.UpdateOp, version int64, source []byte) *bulk.GetResult
}
