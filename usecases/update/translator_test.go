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

package update

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/bulkshard/entities/bulk"
	"github.com/weaviate/bulkshard/entities/errors"
	bulkuc "github.com/weaviate/bulkshard/usecases/bulk"
)

type fakeDocs map[string]*bulkuc.Document

func (f fakeDocs) Get(ctx context.Context, typ, id string) (*bulkuc.Document, error) {
	if doc, ok := f[id]; ok {
		return doc, nil
	}
	return &bulkuc.Document{ID: id, Type: typ, Version: bulk.NotFound}, nil
}

func newTestTranslator() *Translator {
	logger, _ := test.NewNullLogger()
	return NewTranslator(nil, logger)
}

func existing(version int64, source string) fakeDocs {
	return fakeDocs{"1": {
		ID: "1", Type: "book", Version: version, Found: true, Source: []byte(source), Routing: "r1",
	}}
}

func docUpdate(doc string) *bulk.UpdateOp {
	op := bulk.NewUpdateOp("books", "book", "1")
	op.Doc = []byte(doc)
	return op
}

func scriptUpdate(name string, params map[string]interface{}) *bulk.UpdateOp {
	op := bulk.NewUpdateOp("books", "book", "1")
	op.Script = &bulk.Script{Name: name, Params: params}
	return op
}

func TestTranslateDocMerge(t *testing.T) {
	tr := newTestTranslator()
	docs := existing(3, `{"title":"dune","meta":{"pages":412,"lang":"en"}}`)

	res, err := tr.Translate(context.Background(), docUpdate(`{"meta":{"pages":500},"year":1965}`), docs)
	require.NoError(t, err)
	assert.Equal(t, bulkuc.TranslateIndex, res.Kind)
	require.NotNil(t, res.Index)
	assert.JSONEq(t, `{"title":"dune","meta":{"pages":500,"lang":"en"},"year":1965}`, string(res.Index.Source))
	assert.Equal(t, int64(3), res.Index.Version)
	assert.Equal(t, bulk.VersionInternal, res.Index.VersionType)
	assert.Equal(t, "r1", res.Index.Routing)
	assert.False(t, res.Index.Create)
}

func TestTranslateDetectNoop(t *testing.T) {
	tr := newTestTranslator()
	docs := existing(3, `{"title":"dune","meta":{"pages":412}}`)

	op := docUpdate(`{"meta":{"pages":412}}`)
	op.DetectNoop = true
	res, err := tr.Translate(context.Background(), op, docs)
	require.NoError(t, err)
	assert.Equal(t, bulkuc.TranslateNoop, res.Kind)
	assert.Equal(t, int64(3), res.Noop.Version)

	op.DetectNoop = false
	res, err = tr.Translate(context.Background(), op, docs)
	require.NoError(t, err)
	assert.Equal(t, bulkuc.TranslateIndex, res.Kind)
}

func TestTranslateMissingDocument(t *testing.T) {
	tr := newTestTranslator()

	t.Run("without upsert", func(t *testing.T) {
		_, err := tr.Translate(context.Background(), docUpdate(`{"a":1}`), fakeDocs{})
		assert.True(t, errors.IsDocumentMissing(err))
	})

	t.Run("with upsert", func(t *testing.T) {
		op := docUpdate(`{"a":1}`)
		op.Upsert = []byte(`{"a":0}`)
		res, err := tr.Translate(context.Background(), op, fakeDocs{})
		require.NoError(t, err)
		assert.Equal(t, bulkuc.TranslateUpsert, res.Kind)
		assert.True(t, res.Index.Create)
		assert.Equal(t, bulk.MatchAny, res.Index.Version)
		assert.JSONEq(t, `{"a":0}`, string(res.Index.Source))
	})

	t.Run("doc as upsert", func(t *testing.T) {
		op := docUpdate(`{"a":1}`)
		op.DocAsUpsert = true
		res, err := tr.Translate(context.Background(), op, fakeDocs{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(res.Index.Source))
	})

	t.Run("scripted upsert", func(t *testing.T) {
		op := scriptUpdate("increment", map[string]interface{}{"field": "count"})
		op.Upsert = []byte(`{"count":10}`)
		op.ScriptedUpsert = true
		res, err := tr.Translate(context.Background(), op, fakeDocs{})
		require.NoError(t, err)
		assert.Equal(t, bulkuc.TranslateUpsert, res.Kind)
		assert.JSONEq(t, `{"count":11}`, string(res.Index.Source))
	})
}

func TestTranslateVersionConflict(t *testing.T) {
	tr := newTestTranslator()
	op := docUpdate(`{"a":1}`)
	op.Version = 2

	_, err := tr.Translate(context.Background(), op, existing(3, `{}`))
	require.Error(t, err)
	assert.True(t, errors.IsVersionConflict(err))
}

func TestTranslateForcedVersion(t *testing.T) {
	tr := newTestTranslator()
	op := docUpdate(`{"a":1}`)
	op.Version, op.VersionType = 10, bulk.VersionForce

	res, err := tr.Translate(context.Background(), op, existing(3, `{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Index.Version)
	assert.Equal(t, bulk.VersionForce, res.Index.VersionType)
}

func TestTranslateScripts(t *testing.T) {
	tr := newTestTranslator()
	docs := existing(4, `{"count":1,"tags":{"a":true}}`)

	t.Run("increment", func(t *testing.T) {
		res, err := tr.Translate(context.Background(),
			scriptUpdate("increment", map[string]interface{}{"field": "count", "by": json.Number("4")}), docs)
		require.NoError(t, err)
		assert.Equal(t, bulkuc.TranslateIndex, res.Kind)
		assert.JSONEq(t, `{"count":5,"tags":{"a":true}}`, string(res.Index.Source))
	})

	t.Run("delete", func(t *testing.T) {
		res, err := tr.Translate(context.Background(), scriptUpdate("delete", nil), docs)
		require.NoError(t, err)
		assert.Equal(t, bulkuc.TranslateDelete, res.Kind)
		assert.Equal(t, int64(4), res.Delete.Version)
		assert.Equal(t, "r1", res.Delete.Routing)
	})

	t.Run("noop", func(t *testing.T) {
		res, err := tr.Translate(context.Background(), scriptUpdate("noop", nil), docs)
		require.NoError(t, err)
		assert.Equal(t, bulkuc.TranslateNoop, res.Kind)
	})

	t.Run("remove of absent field is a noop", func(t *testing.T) {
		res, err := tr.Translate(context.Background(),
			scriptUpdate("remove", map[string]interface{}{"field": "tags.b"}), docs)
		require.NoError(t, err)
		assert.Equal(t, bulkuc.TranslateNoop, res.Kind)
	})

	t.Run("unknown script", func(t *testing.T) {
		_, err := tr.Translate(context.Background(), scriptUpdate("explode", nil), docs)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("failing script", func(t *testing.T) {
		_, err := tr.Translate(context.Background(), scriptUpdate("increment", nil), docs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing param [field]")
	})

	t.Run("custom script", func(t *testing.T) {
		scripts := NewScripts()
		scripts.Register("clear", func(ctx *ScriptContext) error {
			ctx.Source = nil
			return nil
		})
		logger, _ := test.NewNullLogger()
		res, err := NewTranslator(scripts, logger).Translate(context.Background(), scriptUpdate("clear", nil), docs)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(res.Index.Source))
	})
}

func TestGetResult(t *testing.T) {
	tr := newTestTranslator()
	source := []byte(`{"title":"dune","meta":{"pages":412,"tags":["sf"]},"done":true}`)

	assert.Nil(t, tr.GetResult(docUpdate(`{}`), 2, source))

	op := docUpdate(`{}`)
	op.Fields = []string{"title", "meta.pages", "meta.tags", "done", "missing", "_source"}
	res := tr.GetResult(op, 2, source)
	require.NotNil(t, res)
	assert.True(t, res.Found)
	assert.Equal(t, int64(2), res.Version)
	assert.Equal(t, "dune", res.Fields["title"])
	assert.Equal(t, json.Number("412"), res.Fields["meta.pages"])
	assert.Equal(t, []interface{}{"sf"}, res.Fields["meta.tags"])
	assert.Equal(t, true, res.Fields["done"])
	assert.NotContains(t, res.Fields, "missing")
	assert.Equal(t, source, res.Source)
}

func TestScriptNames(t *testing.T) {
	assert.Equal(t, []string{"delete", "increment", "noop", "remove", "set"}, NewScripts().Names())
}
