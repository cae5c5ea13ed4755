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

// Package bulk holds the write operations of a shard bulk request, the
// per-item bookkeeping of a batch and the outcomes reported back.
package bulk

import (
	"bytes"
	"fmt"
	"time"

	"github.com/weaviate/bulkshard/entities/errors"
)

// maxIDLength is the longest document id accepted, in bytes
const maxIDLength = 512

// OpType is the kind of a request line. Create is an index operation that
// must not overwrite.
type OpType string

const (
	OpIndex  OpType = "index"
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

func ParseOpType(s string) (OpType, error) {
	switch t := OpType(s); t {
	case OpIndex, OpCreate, OpUpdate, OpDelete:
		return t, nil
	default:
		return "", fmt.Errorf("unknown op type [%s]", s)
	}
}

// Operation is one write of a batch. The set of implementations is closed:
// *IndexOp, *DeleteOp and *UpdateOp.
type Operation interface {
	OpType() OpType
	// Target returns index, type and id of the document
	Target() (index, typ, id string)
	// RoutingKey is the value shards are selected by
	RoutingKey() string
	Versioning() (int64, VersionType)
	SetVersioning(version int64, vt VersionType)
	Validate() error
	Clone() Operation

	sealed()
}

// IndexOp writes a full document
type IndexOp struct {
	Index       string        `msgpack:"index"`
	Type        string        `msgpack:"type"`
	ID          string        `msgpack:"id"`
	Routing     string        `msgpack:"routing,omitempty"`
	Parent      string        `msgpack:"parent,omitempty"`
	Timestamp   string        `msgpack:"timestamp,omitempty"`
	TTL         time.Duration `msgpack:"ttl,omitempty"`
	Version     int64         `msgpack:"version"`
	VersionType VersionType   `msgpack:"version_type"`
	Create      bool          `msgpack:"create"`
	Source      []byte        `msgpack:"source"`
}

func NewIndexOp(index, typ, id string, source []byte) *IndexOp {
	return &IndexOp{
		Index:   index,
		Type:    typ,
		ID:      id,
		Version: MatchAny,
		Source:  source,
	}
}

func (op *IndexOp) OpType() OpType {
	if op.Create {
		return OpCreate
	}
	return OpIndex
}

func (op *IndexOp) Target() (string, string, string) { return op.Index, op.Type, op.ID }

func (op *IndexOp) RoutingKey() string { return routingKey(op.Routing, op.Parent, op.ID) }

func (op *IndexOp) Versioning() (int64, VersionType) { return op.Version, op.VersionType }

func (op *IndexOp) SetVersioning(version int64, vt VersionType) {
	op.Version, op.VersionType = version, vt
}

func (op *IndexOp) Validate() error {
	var ve *errors.ValidationError
	if op.Type == "" {
		ve = errors.AddValidationError(ve, "type is missing")
	}
	if len(bytes.TrimSpace(op.Source)) == 0 {
		ve = errors.AddValidationError(ve, "source is missing")
	}
	if len(op.ID) > maxIDLength {
		ve = errors.AddValidationError(ve, fmt.Sprintf(
			"id is too long, must be no longer than %d bytes but was: %d", maxIDLength, len(op.ID)))
	}
	if !op.VersionType.ValidateForWrites(op.Version) {
		ve = errors.AddValidationError(ve, fmt.Sprintf(
			"illegal version value [%d] for version type [%s]", op.Version, op.VersionType))
	}
	if ve != nil {
		return ve
	}
	return nil
}

func (op *IndexOp) Clone() Operation {
	c := *op
	c.Source = append([]byte(nil), op.Source...)
	return &c
}

func (*IndexOp) sealed() {}

// DeleteOp removes a document
type DeleteOp struct {
	Index       string      `msgpack:"index"`
	Type        string      `msgpack:"type"`
	ID          string      `msgpack:"id"`
	Routing     string      `msgpack:"routing,omitempty"`
	Parent      string      `msgpack:"parent,omitempty"`
	Version     int64       `msgpack:"version"`
	VersionType VersionType `msgpack:"version_type"`
}

func NewDeleteOp(index, typ, id string) *DeleteOp {
	return &DeleteOp{Index: index, Type: typ, ID: id, Version: MatchAny}
}

func (*DeleteOp) OpType() OpType { return OpDelete }

func (op *DeleteOp) Target() (string, string, string) { return op.Index, op.Type, op.ID }

func (op *DeleteOp) RoutingKey() string { return routingKey(op.Routing, op.Parent, op.ID) }

func (op *DeleteOp) Versioning() (int64, VersionType) { return op.Version, op.VersionType }

func (op *DeleteOp) SetVersioning(version int64, vt VersionType) {
	op.Version, op.VersionType = version, vt
}

func (op *DeleteOp) Validate() error {
	var ve *errors.ValidationError
	if op.Type == "" {
		ve = errors.AddValidationError(ve, "type is missing")
	}
	if op.ID == "" {
		ve = errors.AddValidationError(ve, "id is missing")
	}
	if !op.VersionType.ValidateForWrites(op.Version) {
		ve = errors.AddValidationError(ve, fmt.Sprintf(
			"illegal version value [%d] for version type [%s]", op.Version, op.VersionType))
	}
	if ve != nil {
		return ve
	}
	return nil
}

func (op *DeleteOp) Clone() Operation {
	c := *op
	return &c
}

func (*DeleteOp) sealed() {}

// Script names a registered update script and its parameters
type Script struct {
	Name   string                 `msgpack:"name"`
	Params map[string]interface{} `msgpack:"params,omitempty"`
}

// UpdateOp is a read-modify-write of a document. The primary translates it
// into an index, a delete or nothing; replicas never see it.
type UpdateOp struct {
	Index           string
	Type            string
	ID              string
	Routing         string
	Parent          string
	Timestamp       string
	TTL             time.Duration
	RetryOnConflict int
	Doc             []byte
	Upsert          []byte
	DocAsUpsert     bool
	DetectNoop      bool
	ScriptedUpsert  bool
	Script          *Script
	Fields          []string
	Version         int64
	VersionType     VersionType
}

func NewUpdateOp(index, typ, id string) *UpdateOp {
	return &UpdateOp{Index: index, Type: typ, ID: id, Version: MatchAny}
}

func (*UpdateOp) OpType() OpType { return OpUpdate }

func (op *UpdateOp) Target() (string, string, string) { return op.Index, op.Type, op.ID }

func (op *UpdateOp) RoutingKey() string { return routingKey(op.Routing, op.Parent, op.ID) }

func (op *UpdateOp) Versioning() (int64, VersionType) { return op.Version, op.VersionType }

func (op *UpdateOp) SetVersioning(version int64, vt VersionType) {
	op.Version, op.VersionType = version, vt
}

func (op *UpdateOp) Validate() error {
	var ve *errors.ValidationError
	if op.Type == "" {
		ve = errors.AddValidationError(ve, "type is missing")
	}
	if op.ID == "" {
		ve = errors.AddValidationError(ve, "id is missing")
	}
	if op.RetryOnConflict < 0 {
		ve = errors.AddValidationError(ve, "retry_on_conflict must be >= 0")
	}
	if op.VersionType != VersionInternal && op.VersionType != VersionForce {
		ve = errors.AddValidationError(ve, fmt.Sprintf(
			"version type [%s] is not supported by the update API", op.VersionType))
	} else if !op.VersionType.ValidateForWrites(op.Version) {
		ve = errors.AddValidationError(ve, fmt.Sprintf(
			"illegal version value [%d] for version type [%s]", op.Version, op.VersionType))
	}
	if op.Version != MatchAny && op.RetryOnConflict > 0 {
		ve = errors.AddValidationError(ve, "can't provide both retry_on_conflict and a specific version")
	}
	if op.Script == nil && op.Doc == nil {
		ve = errors.AddValidationError(ve, "script or doc is missing")
	}
	if op.Script != nil && op.Doc != nil {
		ve = errors.AddValidationError(ve, "can't provide both script and doc")
	}
	if op.DocAsUpsert && op.Doc == nil {
		ve = errors.AddValidationError(ve, "doc must be specified if doc_as_upsert is enabled")
	}
	if ve != nil {
		return ve
	}
	return nil
}

func (op *UpdateOp) Clone() Operation {
	c := *op
	c.Doc = append([]byte(nil), op.Doc...)
	c.Upsert = append([]byte(nil), op.Upsert...)
	c.Fields = append([]string(nil), op.Fields...)
	if op.Doc == nil {
		c.Doc = nil
	}
	if op.Upsert == nil {
		c.Upsert = nil
	}
	if op.Script != nil {
		s := *op.Script
		c.Script = &s
	}
	return &c
}

func (*UpdateOp) sealed() {}

func routingKey(routing, parent, id string) string {
	if routing != "" {
		return routing
	}
	if parent != "" {
		return parent
	}
	return id
}
