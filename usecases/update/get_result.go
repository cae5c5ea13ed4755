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
	"encoding/json"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/weaviate/bulkshard/entities/bulk"
)

const sourceField = "_source"

// GetResult extracts the requested fields of an update from the
// document's new source. Dotted fields address nested values; fields
// missing from the source are left out.
func (t *Translator) GetResult(op *bulk.UpdateOp, version int64, source []byte) *bulk.GetResult {
	if len(op.Fields) == 0 {
		return nil
	}
	res := &bulk.GetResult{Found: source != nil, Version: version}
	for _, field := range op.Fields {
		if field == sourceField {
			res.Source = source
			continue
		}
		raw, dataType, _, err := jsonparser.Get(source, strings.Split(field, ".")...)
		if err != nil {
			continue
		}
		value, err := decodeValue(raw, dataType)
		if err != nil {
			t.logger.WithError(err).WithField("field", field).Debug("skip unreadable field of get result")
			continue
		}
		if res.Fields == nil {
			res.Fields = map[string]interface{}{}
		}
		res.Fields[field] = value
	}
	return res
}

func decodeValue(raw []byte, dataType jsonparser.ValueType) (interface{}, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(raw)
	case jsonparser.Number:
		return json.Number(raw), nil
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(raw)
	case jsonparser.Null:
		return nil, nil
	default:
		var v interface{}
		err := json.Unmarshal(raw, &v)
		return v, err
	}
}
