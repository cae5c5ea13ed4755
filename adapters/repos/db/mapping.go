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
	"sort"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	enterrors "github.com/weaviate/bulkshard/entities/errors"
)

// topLevelFields lists the keys of the JSON object source
func topLevelFields(source []byte) ([]string, error) {
	var fields []string
	err := jsonparser.ObjectEach(source, func(key []byte, _ []byte, _ jsonparser.ValueType, _ int) error {
		fields = append(fields, string(key))
		return nil
	})
	if err != nil {
		return nil, enterrors.NewValidationError("failed to parse source: %v", err)
	}
	return fields, nil
}

// mapping is the set of known top-level fields per type
type mapping map[string]map[string]struct{}

func (m mapping) unknown(typ string, fields []string) []string {
	known := m[typ]
	var out []string
	for _, f := range fields {
		if _, ok := known[f]; !ok {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// merge adds fields to typ and returns the ones that were new
func (m mapping) merge(typ string, fields []string) []string {
	known, ok := m[typ]
	if !ok {
		known = map[string]struct{}{}
		m[typ] = known
	}
	var added []string
	for _, f := range fields {
		if _, ok := known[f]; !ok {
			known[f] = struct{}{}
			added = append(added, f)
		}
	}
	sort.Strings(added)
	return added
}

func (m mapping) fields(typ string) []string {
	out := make([]string, 0, len(m[typ]))
	for f := range m[typ] {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func loadMapping(tx *bolt.Tx) (mapping, error) {
	m := mapping{}
	b := tx.Bucket(mappingBucket)
	err := b.ForEach(func(k, v []byte) error {
		var fields []string
		if err := msgpack.Unmarshal(v, &fields); err != nil {
			return errors.Wrapf(err, "decode mapping of type %q", k)
		}
		m.merge(string(k), fields)
		return nil
	})
	return m, err
}

func putMapping(tx *bolt.Tx, m mapping, typ string) error {
	data, err := msgpack.Marshal(m.fields(typ))
	if err != nil {
		return errors.Wrapf(err, "encode mapping of type %q", typ)
	}
	return tx.Bucket(mappingBucket).Put([]byte(typ), data)
}
