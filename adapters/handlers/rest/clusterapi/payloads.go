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

package clusterapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
)

var IndicesPayloads = indicesPayloads{}

type indicesPayloads struct {
	ReplicaBulk replicaBulkPayload
	Mapping     mappingPayload
	Error       errorPayload
}

type replicaBulkPayload struct{}

// replicaItem carries exactly one of Index and Delete
type replicaItem struct {
	Position int            `msgpack:"position"`
	Index    *bulk.IndexOp  `msgpack:"index,omitempty"`
	Delete   *bulk.DeleteOp `msgpack:"delete,omitempty"`
}

type replicaBulk struct {
	Index   string        `msgpack:"index"`
	Shard   int           `msgpack:"shard"`
	Refresh bool          `msgpack:"refresh,omitempty"`
	Items   []replicaItem `msgpack:"items"`
}

func (p replicaBulkPayload) MIME() string {
	return "application/vnd.bulkshard.replicabulk+msgpack"
}

func (p replicaBulkPayload) SetContentTypeHeaderReq(r *http.Request) {
	r.Header.Set("content-type", p.MIME())
}

func (p replicaBulkPayload) CheckContentTypeHeaderReq(r *http.Request) (string, bool) {
	ct := r.Header.Get("content-type")
	return ct, ct == p.MIME()
}

// Marshal encodes the items replicas have to apply. Ignored items stay on
// the primary.
func (p replicaBulkPayload) Marshal(req *bulk.ReplicaRequest) ([]byte, error) {
	out := replicaBulk{
		Index:   req.ShardID.Index,
		Shard:   req.ShardID.Shard,
		Refresh: req.Refresh,
		Items:   make([]replicaItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		if item.IgnoreOnReplica {
			continue
		}
		wire := replicaItem{Position: item.Position}
		switch op := item.Operation.(type) {
		case *bulk.IndexOp:
			wire.Index = op
		case *bulk.DeleteOp:
			wire.Delete = op
		default:
			return nil, fmt.Errorf("item [%d]: unexpected operation %T on replica", item.Position, op)
		}
		out.Items = append(out.Items, wire)
	}
	return msgpack.Marshal(&out)
}

func (p replicaBulkPayload) Unmarshal(in []byte) (*bulk.ReplicaRequest, error) {
	var wire replicaBulk
	if err := msgpack.Unmarshal(in, &wire); err != nil {
		return nil, fmt.Errorf("decode replica bulk: %w", err)
	}
	req := &bulk.ReplicaRequest{
		ShardID: bulk.ShardID{Index: wire.Index, Shard: wire.Shard},
		Refresh: wire.Refresh,
		Items:   make([]bulk.ResolvedItem, 0, len(wire.Items)),
	}
	for _, item := range wire.Items {
		var op bulk.Operation
		switch {
		case item.Index != nil && item.Delete == nil:
			op = item.Index
		case item.Delete != nil && item.Index == nil:
			op = item.Delete
		default:
			return nil, fmt.Errorf("item [%d]: expected exactly one operation", item.Position)
		}
		req.Items = append(req.Items, bulk.ResolvedItem{Position: item.Position, Operation: op})
	}
	return req, nil
}

type mappingPayload struct{}

// MappingUpdate lists fields a primary added to the mapping of a type
type MappingUpdate struct {
	Type   string   `msgpack:"type"`
	Fields []string `msgpack:"fields"`
}

func (p mappingPayload) MIME() string {
	return "application/vnd.bulkshard.mapping+msgpack"
}

func (p mappingPayload) SetContentTypeHeaderReq(r *http.Request) {
	r.Header.Set("content-type", p.MIME())
}

func (p mappingPayload) CheckContentTypeHeaderReq(r *http.Request) (string, bool) {
	ct := r.Header.Get("content-type")
	return ct, ct == p.MIME()
}

func (p mappingPayload) Marshal(in MappingUpdate) ([]byte, error) {
	return msgpack.Marshal(&in)
}

func (p mappingPayload) Unmarshal(in []byte) (MappingUpdate, error) {
	var out MappingUpdate
	err := msgpack.Unmarshal(in, &out)
	return out, err
}

type errorPayload struct{}

// Write sends err as a JSON status document with the HTTP status of its
// class
func (p errorPayload) Write(w http.ResponseWriter, err error) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(enterrors.HTTPStatus(err))
	json.NewEncoder(w).Encode(enterrors.ToStatus(err))
}

// Read restores the typed error sent by Write
func (p errorPayload) Read(index string, shard int, status int, body io.Reader) error {
	var se enterrors.Error
	if err := json.NewDecoder(body).Decode(&se); err != nil || se.Empty() {
		return &enterrors.Error{
			Code: enterrors.StatusInternal,
			Msg:  fmt.Sprintf("status code: %d", status),
		}
	}
	return enterrors.FromStatus(index, shard, &se)
}
