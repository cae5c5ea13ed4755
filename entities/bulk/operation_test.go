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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/bulkshard/entities/errors"
)

func TestOperationValidate(t *testing.T) {
	update := func(mod func(op *UpdateOp)) *UpdateOp {
		op := NewUpdateOp("books", "book", "1")
		op.Doc = []byte(`{"a":1}`)
		mod(op)
		return op
	}

	tests := []struct {
		name string
		op   Operation
		msg  string
	}{
		{"valid index", NewIndexOp("books", "book", "", []byte(`{"a":1}`)), ""},
		{"index without source", NewIndexOp("books", "book", "1", nil), "source is missing"},
		{"index without type", NewIndexOp("books", "", "1", []byte(`{}`)), "type is missing"},
		{"delete without id", NewDeleteOp("books", "book", ""), "id is missing"},
		{"delete with zero internal version", &DeleteOp{Index: "books", Type: "book", ID: "1"}, "illegal version value [0]"},
		{"valid update", update(func(op *UpdateOp) {}), ""},
		{"update without id", update(func(op *UpdateOp) { op.ID = "" }), "id is missing"},
		{"update without doc or script", update(func(op *UpdateOp) { op.Doc = nil }), "script or doc is missing"},
		{"update with doc and script", update(func(op *UpdateOp) { op.Script = &Script{Name: "incr"} }), "can't provide both script and doc"},
		{"update with negative retries", update(func(op *UpdateOp) { op.RetryOnConflict = -1 }), "retry_on_conflict must be >= 0"},
		{"update with external version", update(func(op *UpdateOp) {
			op.Version, op.VersionType = 3, VersionExternal
		}), "not supported by the update API"},
		{"update with version and retries", update(func(op *UpdateOp) {
			op.Version, op.RetryOnConflict = 3, 2
		}), "can't provide both retry_on_conflict and a specific version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.msg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestOperationClone(t *testing.T) {
	t.Run("index source is copied", func(t *testing.T) {
		op := NewIndexOp("books", "book", "1", []byte(`{"a":1}`))
		op.TTL = time.Minute
		c := op.Clone().(*IndexOp)
		c.Source[0] = 'x'
		c.SetVersioning(7, VersionExternal)
		assert.Equal(t, `{"a":1}`, string(op.Source))
		assert.Equal(t, MatchAny, op.Version)
		assert.Equal(t, time.Minute, c.TTL)
	})

	t.Run("update script is copied", func(t *testing.T) {
		op := NewUpdateOp("books", "book", "1")
		op.Script = &Script{Name: "incr"}
		c := op.Clone().(*UpdateOp)
		c.Script.Name = "other"
		assert.Equal(t, "incr", op.Script.Name)
		assert.Nil(t, c.Doc)
	})
}

func TestOperationRoutingKey(t *testing.T) {
	op := NewIndexOp("books", "book", "1", []byte(`{}`))
	assert.Equal(t, "1", op.RoutingKey())
	op.Parent = "p"
	assert.Equal(t, "p", op.RoutingKey())
	op.Routing = "r"
	assert.Equal(t, "r", op.RoutingKey())
}

func TestOpTypes(t *testing.T) {
	op := NewIndexOp("books", "book", "1", []byte(`{}`))
	assert.Equal(t, OpIndex, op.OpType())
	op.Create = true
	assert.Equal(t, OpCreate, op.OpType())
	assert.Equal(t, OpDelete, NewDeleteOp("books", "book", "1").OpType())
	assert.Equal(t, OpUpdate, NewUpdateOp("books", "book", "1").OpType())
}
