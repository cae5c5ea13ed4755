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

// Package update translates update operations into the index, delete or
// no-op they amount to given the current state of the document.
package update

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/weaviate/bulkshard/entities/bulk"
	"github.com/weaviate/bulkshard/entities/errors"
	bulkuc "github.com/weaviate/bulkshard/usecases/bulk"
)

type Translator struct {
	scripts *Scripts
	logger  logrus.FieldLogger
}

func NewTranslator(scripts *Scripts, logger logrus.FieldLogger) *Translator {
	if scripts == nil {
		scripts = NewScripts()
	}
	return &Translator{
		scripts: scripts,
		logger:  logger.WithField("action", "update_translate"),
	}
}

// Translate reads the document op refers to and resolves op against it.
// The resulting write carries the version that was read, so a concurrent
// change surfaces as a version conflict when it is applied.
func (t *Translator) Translate(ctx context.Context, op *bulk.UpdateOp, docs bulkuc.Getter) (*bulkuc.Translation, error) {
	doc, err := docs.Get(ctx, op.Type, op.ID)
	if err != nil {
		return nil, err
	}
	if doc == nil || !doc.Found {
		return t.upsert(op)
	}

	if op.VersionType.IsVersionConflictForWrites(doc.Version, op.Version) {
		return nil, &errors.VersionConflictError{
			Index:    op.Index,
			Type:     op.Type,
			ID:       op.ID,
			Current:  doc.Version,
			Provided: op.Version,
		}
	}
	source, err := decodeSource(doc.Source)
	if err != nil {
		return nil, fmt.Errorf("decode source of [%s][%s]: %w", op.Type, op.ID, err)
	}

	if op.Script != nil {
		return t.script(op, doc, source)
	}

	changes, err := decodeSource(op.Doc)
	if err != nil {
		return nil, errors.NewValidationError("failed to parse doc of update: %v", err)
	}
	if modified := mergeInto(source, changes); !modified && op.DetectNoop {
		return t.noop(op, doc), nil
	}
	return t.index(op, doc, source)
}

func (t *Translator) upsert(op *bulk.UpdateOp) (*bulkuc.Translation, error) {
	src := op.Upsert
	if op.DocAsUpsert {
		src = op.Doc
	}
	if src == nil {
		return nil, &errors.DocumentMissingError{Index: op.Index, Type: op.Type, ID: op.ID}
	}

	if op.ScriptedUpsert && op.Script != nil {
		source, err := decodeSource(src)
		if err != nil {
			return nil, errors.NewValidationError("failed to parse upsert of update: %v", err)
		}
		sc, err := t.run(op, OpCreate, source)
		if err != nil {
			return nil, err
		}
		if sc.Op != OpCreate && sc.Op != OpIndex {
			t.logger.WithField("op", sc.Op).Warn("used upsert operation for script, doing nothing")
			return &bulkuc.Translation{
				Kind: bulkuc.TranslateNoop,
				Noop: &bulk.Success{Version: bulk.NotFound},
			}, nil
		}
		if src, err = json.Marshal(sc.Source); err != nil {
			return nil, err
		}
	}

	idx := &bulk.IndexOp{
		Index:       op.Index,
		Type:        op.Type,
		ID:          op.ID,
		Routing:     op.Routing,
		Parent:      op.Parent,
		Timestamp:   op.Timestamp,
		TTL:         op.TTL,
		Create:      true,
		Version:     bulk.MatchAny,
		VersionType: bulk.VersionInternal,
		Source:      src,
	}
	if op.VersionType != bulk.VersionInternal {
		idx.Version, idx.VersionType = op.Version, op.VersionType
	}
	return &bulkuc.Translation{Kind: bulkuc.TranslateUpsert, Index: idx, Source: src}, nil
}

func (t *Translator) script(op *bulk.UpdateOp, doc *bulkuc.Document, source map[string]interface{}) (*bulkuc.Translation, error) {
	sc, err := t.run(op, OpIndex, source)
	if err != nil {
		return nil, err
	}
	switch sc.Op {
	case OpIndex, OpCreate, "":
		return t.index(op, doc, sc.Source)
	case OpDelete:
		encoded, err := json.Marshal(sc.Source)
		if err != nil {
			return nil, err
		}
		version, vt := updateVersion(op, doc)
		return &bulkuc.Translation{
			Kind: bulkuc.TranslateDelete,
			Delete: &bulk.DeleteOp{
				Index:       op.Index,
				Type:        op.Type,
				ID:          op.ID,
				Routing:     routing(op, doc),
				Parent:      parent(op, doc),
				Version:     version,
				VersionType: vt,
			},
			Source: encoded,
		}, nil
	case OpNone:
		return t.noop(op, doc), nil
	default:
		t.logger.WithField("op", sc.Op).Warn("used update operation for script, doing nothing")
		return t.noop(op, doc), nil
	}
}

func (t *Translator) run(op *bulk.UpdateOp, initial string, source map[string]interface{}) (*ScriptContext, error) {
	script, ok := t.scripts.Get(op.Script.Name)
	if !ok {
		return nil, errors.NewValidationError("script [%s] is not registered", op.Script.Name)
	}
	params := op.Script.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	sc := &ScriptContext{Op: initial, Source: source, Params: params}
	if err := script(sc); err != nil {
		return nil, errors.NewValidationError("failed to execute script [%s]: %v", op.Script.Name, err)
	}
	if sc.Source == nil {
		sc.Source = map[string]interface{}{}
	}
	return sc, nil
}

func (t *Translator) index(op *bulk.UpdateOp, doc *bulkuc.Document, source map[string]interface{}) (*bulkuc.Translation, error) {
	encoded, err := json.Marshal(source)
	if err != nil {
		return nil, err
	}
	version, vt := updateVersion(op, doc)
	ttl := op.TTL
	if ttl == 0 {
		ttl = doc.TTL
	}
	return &bulkuc.Translation{
		Kind: bulkuc.TranslateIndex,
		Index: &bulk.IndexOp{
			Index:       op.Index,
			Type:        op.Type,
			ID:          op.ID,
			Routing:     routing(op, doc),
			Parent:      parent(op, doc),
			Timestamp:   op.Timestamp,
			TTL:         ttl,
			Version:     version,
			VersionType: vt,
			Source:      encoded,
		},
		Source: encoded,
	}, nil
}

func (t *Translator) noop(op *bulk.UpdateOp, doc *bulkuc.Document) *bulkuc.Translation {
	return &bulkuc.Translation{
		Kind: bulkuc.TranslateNoop,
		Noop: &bulk.Success{
			Version: doc.Version,
			Get:     t.GetResult(op, doc.Version, doc.Source),
		},
		Source: doc.Source,
	}
}

// updateVersion is the version the translated write expects. Forced
// updates keep the requested version, everything else must still find the
// version that was read.
func updateVersion(op *bulk.UpdateOp, doc *bulkuc.Document) (int64, bulk.VersionType) {
	if op.VersionType == bulk.VersionForce {
		return op.Version, bulk.VersionForce
	}
	return doc.Version, bulk.VersionInternal
}

func routing(op *bulk.UpdateOp, doc *bulkuc.Document) string {
	if op.Routing != "" {
		return op.Routing
	}
	return doc.Routing
}

func parent(op *bulk.UpdateOp, doc *bulkuc.Document) string {
	if op.Parent != "" {
		return op.Parent
	}
	return doc.Parent
}
