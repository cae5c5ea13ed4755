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

// Package bulkapi serves the newline delimited bulk endpoint: it parses
// request bodies into operations, routes them to shards and reassembles
// the per-item answers in submission order.
package bulkapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/weaviate/bulkshard/entities/bulk"
	enterrors "github.com/weaviate/bulkshard/entities/errors"
)

// Defaults apply to every request line that does not set the value itself.
// They come from the url and the query string of a bulk call.
type Defaults struct {
	Index   string
	Type    string
	Routing string
	Fields  []string
	// AllowExplicitIndex permits _index on action lines
	AllowExplicitIndex bool
}

// metadata is the content of one action line
type metadata struct {
	index, typ, id  string
	routing, parent string
	timestamp       string
	ttl             time.Duration
	opType          string
	opTypeIsSet     bool
	version         int64
	versionType     bulk.VersionType
	retryOnConflict int
	fields          []string
	fieldsSet       bool
}

// Parse reads a bulk body. Lines are terminated by '\n'; data after the
// last newline is not part of the request. An action line that should be
// followed by a source line but ends the body is dropped.
func Parse(body []byte, defaults Defaults) ([]bulk.Operation, error) {
	var (
		ops  []bulk.Operation
		from int
		line int
	)
	next := func() ([]byte, bool) {
		i := bytes.IndexByte(body[from:], '\n')
		if i < 0 {
			return nil, false
		}
		l := body[from : from+i]
		from += i + 1
		line++
		return bytes.TrimRight(l, "\r"), true
	}

	for {
		actionLine, ok := next()
		if !ok {
			break
		}
		if len(bytes.TrimSpace(actionLine)) == 0 {
			continue
		}

		action, meta, err := parseAction(actionLine, line, defaults)
		if err != nil {
			return nil, err
		}

		if action == bulk.OpDelete {
			op := bulk.NewDeleteOp(meta.index, meta.typ, meta.id)
			op.Routing, op.Parent = meta.routing, meta.parent
			op.Version, op.VersionType = meta.version, meta.versionType
			ops = append(ops, op)
			continue
		}

		source, ok := next()
		if !ok {
			break
		}

		switch action {
		case bulk.OpIndex, bulk.OpCreate:
			op := bulk.NewIndexOp(meta.index, meta.typ, meta.id, source)
			op.Routing, op.Parent = meta.routing, meta.parent
			op.Timestamp, op.TTL = meta.timestamp, meta.ttl
			op.Version, op.VersionType = meta.version, meta.versionType
			op.Create = action == bulk.OpCreate
			if action == bulk.OpIndex && meta.opTypeIsSet {
				op.Create = meta.opType == string(bulk.OpCreate)
			}
			ops = append(ops, op)
		case bulk.OpUpdate:
			op := bulk.NewUpdateOp(meta.index, meta.typ, meta.id)
			op.Routing, op.Parent = meta.routing, meta.parent
			op.Timestamp, op.TTL = meta.timestamp, meta.ttl
			op.Version, op.VersionType = meta.version, meta.versionType
			op.RetryOnConflict = meta.retryOnConflict
			if meta.fieldsSet {
				op.Fields = meta.fields
			}
			if err := parseUpdateSource(source, op); err != nil {
				return nil, enterrors.NewParseError(line, "failed to parse update source: %v", err)
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func parseAction(raw []byte, line int, defaults Defaults) (bulk.OpType, *metadata, error) {
	meta := &metadata{
		index:       defaults.Index,
		typ:         defaults.Type,
		routing:     defaults.Routing,
		fields:      defaults.Fields,
		fieldsSet:   defaults.Fields != nil,
		version:     bulk.MatchAny,
		versionType: bulk.VersionInternal,
	}

	var (
		action  bulk.OpType
		actions int
	)
	err := jsonparser.ObjectEach(raw, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		actions++
		if actions > 1 {
			return enterrors.NewParseError(line, "malformed action/metadata line, expected a single action but found [%s]", key)
		}
		t, err := bulk.ParseOpType(string(key))
		if err != nil {
			return enterrors.NewParseError(line, "unknown action [%s]", key)
		}
		action = t

		switch dataType {
		case jsonparser.Object:
			return jsonparser.ObjectEach(value, func(k, v []byte, vt jsonparser.ValueType, _ int) error {
				return meta.set(string(k), v, vt, line, defaults.AllowExplicitIndex)
			})
		case jsonparser.Null:
			return nil
		default:
			return enterrors.NewParseError(line,
				"malformed action/metadata line, expected START_OBJECT or END_OBJECT but found [%s]", dataType)
		}
	})
	if err != nil {
		if enterrors.IsParse(err) || enterrors.IsValidation(err) {
			return "", nil, err
		}
		return "", nil, enterrors.NewParseError(line, "malformed action/metadata line: %v", err)
	}
	if actions == 0 {
		return "", nil, enterrors.NewParseError(line, "malformed action/metadata line, expected an action")
	}
	return action, meta, nil
}

// set applies one metadata field. Aliases follow the names clients have
// been sending for years.
func (m *metadata) set(key string, value []byte, vt jsonparser.ValueType, line int, allowExplicitIndex bool) error {
	switch vt {
	case jsonparser.Null:
		return nil
	case jsonparser.Array:
		if key != "fields" {
			return enterrors.NewParseError(line,
				"malformed action/metadata line, expected a simple value for field [%s] but found [START_ARRAY]", key)
		}
		fields, err := stringArray(value)
		if err != nil {
			return enterrors.NewParseError(line, "field [fields]: %v", err)
		}
		m.fields, m.fieldsSet = fields, true
		return nil
	case jsonparser.Object:
		return enterrors.NewParseError(line,
			"malformed action/metadata line, expected a simple value for field [%s] but found [START_OBJECT]", key)
	}

	text, err := scalarText(value, vt)
	if err != nil {
		return enterrors.NewParseError(line, "field [%s]: %v", key, err)
	}

	switch key {
	case "_index":
		if !allowExplicitIndex {
			return enterrors.NewParseError(line, "explicit index in bulk is not allowed")
		}
		m.index = text
	case "_type":
		m.typ = text
	case "_id":
		m.id = text
	case "_routing", "routing":
		m.routing = text
	case "_parent", "parent":
		m.parent = text
	case "_timestamp", "timestamp":
		m.timestamp = text
	case "_ttl", "ttl":
		var ttl time.Duration
		if vt == jsonparser.String {
			ttl, err = parseTimeValue(text)
		} else {
			var ms int64
			ms, err = strconv.ParseInt(text, 10, 64)
			ttl = time.Duration(ms) * time.Millisecond
		}
		if err != nil {
			return enterrors.NewParseError(line, "field [%s]: %v", key, err)
		}
		m.ttl = ttl
	case "op_type", "opType":
		if text != string(bulk.OpIndex) && text != string(bulk.OpCreate) {
			return enterrors.NewParseError(line, "op_type must be [index] or [create], got [%s]", text)
		}
		m.opType, m.opTypeIsSet = text, true
	case "_version", "version":
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return enterrors.NewParseError(line, "field [%s]: %v", key, err)
		}
		m.version = v
	case "_version_type", "_versionType", "version_type", "versionType":
		v, err := bulk.ParseVersionType(text)
		if err != nil {
			return enterrors.NewParseError(line, "field [%s]: %v", key, err)
		}
		m.versionType = v
	case "_retry_on_conflict", "_retryOnConflict", "retry_on_conflict":
		v, err := strconv.Atoi(text)
		if err != nil {
			return enterrors.NewParseError(line, "field [%s]: %v", key, err)
		}
		m.retryOnConflict = v
	case "fields":
		return enterrors.NewParseError(line,
			"action/metadata line contains a simple value for parameter [fields] while a list is expected")
	default:
		return enterrors.NewParseError(line, "action/metadata line contains an unknown parameter [%s]", key)
	}
	return nil
}

// parseUpdateSource reads the source line of an update action into op
func parseUpdateSource(source []byte, op *bulk.UpdateOp) error {
	var params map[string]interface{}
	err := jsonparser.ObjectEach(source, func(key, value []byte, vt jsonparser.ValueType, _ int) error {
		switch k := string(key); k {
		case "script":
			s, err := parseScript(value, vt)
			if err != nil {
				return err
			}
			op.Script = s
		case "params":
			p, err := decodeObject(value, vt)
			if err != nil {
				return err
			}
			params = p
		case "lang":
		case "scripted_upsert":
			b, err := jsonparser.ParseBoolean(value)
			if err != nil {
				return err
			}
			op.ScriptedUpsert = b
		case "upsert":
			if vt != jsonparser.Object {
				return errUnexpected(k, vt)
			}
			op.Upsert = value
		case "doc":
			if vt != jsonparser.Object {
				return errUnexpected(k, vt)
			}
			op.Doc = value
		case "doc_as_upsert":
			b, err := jsonparser.ParseBoolean(value)
			if err != nil {
				return err
			}
			op.DocAsUpsert = b
		case "detect_noop":
			b, err := jsonparser.ParseBoolean(value)
			if err != nil {
				return err
			}
			op.DetectNoop = b
		case "fields":
			switch vt {
			case jsonparser.Array:
				fields, err := stringArray(value)
				if err != nil {
					return err
				}
				op.Fields = fields
			case jsonparser.String:
				op.Fields = strings.Split(string(value), ",")
			default:
				return errUnexpected(k, vt)
			}
		default:
			return &fieldError{field: k, reason: "unknown field"}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// script params given next to the script are merged into it
	if params != nil && op.Script != nil {
		if op.Script.Params == nil {
			op.Script.Params = params
		} else {
			for k, v := range params {
				if _, ok := op.Script.Params[k]; !ok {
					op.Script.Params[k] = v
				}
			}
		}
	}
	return nil
}

// parseScript accepts a script name or an object naming the script
// together with its params
func parseScript(value []byte, vt jsonparser.ValueType) (*bulk.Script, error) {
	switch vt {
	case jsonparser.String:
		name, err := jsonparser.ParseString(value)
		if err != nil {
			return nil, err
		}
		return &bulk.Script{Name: name}, nil
	case jsonparser.Object:
		s := &bulk.Script{}
		err := jsonparser.ObjectEach(value, func(key, v []byte, t jsonparser.ValueType, _ int) error {
			switch k := string(key); k {
			case "inline", "id", "file", "name":
				name, err := jsonparser.ParseString(v)
				if err != nil {
					return err
				}
				s.Name = name
			case "params":
				p, err := decodeObject(v, t)
				if err != nil {
					return err
				}
				s.Params = p
			case "lang":
			default:
				return &fieldError{field: "script." + k, reason: "unknown field"}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if s.Name == "" {
			return nil, &fieldError{field: "script", reason: "script name is missing"}
		}
		return s, nil
	default:
		return nil, errUnexpected("script", vt)
	}
}

type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string {
	return "[" + e.field + "]: " + e.reason
}

func errUnexpected(field string, vt jsonparser.ValueType) error {
	return &fieldError{field: field, reason: "unexpected value of type " + vt.String()}
}

// decodeObject keeps numbers as json.Number so scripts can tell integers
// from floats
func decodeObject(value []byte, vt jsonparser.ValueType) (map[string]interface{}, error) {
	if vt == jsonparser.Null {
		return nil, nil
	}
	if vt != jsonparser.Object {
		return nil, errUnexpected("params", vt)
	}
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	out := map[string]interface{}{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func stringArray(value []byte) ([]string, error) {
	out := []string{}
	var inner error
	_, err := jsonparser.ArrayEach(value, func(v []byte, vt jsonparser.ValueType, _ int, err error) {
		if inner != nil {
			return
		}
		if err != nil {
			inner = err
			return
		}
		s, err := scalarText(v, vt)
		if err != nil {
			inner = err
			return
		}
		out = append(out, s)
	})
	if err != nil {
		return nil, err
	}
	if inner != nil {
		return nil, inner
	}
	return out, nil
}

// scalarText returns the text of a string, number or boolean value
func scalarText(value []byte, vt jsonparser.ValueType) (string, error) {
	switch vt {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Number, jsonparser.Boolean:
		return string(value), nil
	default:
		return "", &fieldError{field: string(value), reason: "expected a simple value, found " + vt.String()}
	}
}

var timeUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"nanos", time.Nanosecond},
	{"micros", time.Microsecond},
	{"ms", time.Millisecond},
	{"s", time.Second},
	{"m", time.Minute},
	{"h", time.Hour},
	{"d", 24 * time.Hour},
	{"w", 7 * 24 * time.Hour},
}

// parseTimeValue reads values like "1d", "90m" or "1.5h". A bare number is
// taken as milliseconds.
func parseTimeValue(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	unit := time.Millisecond
	for _, u := range timeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, unit = strings.TrimSuffix(s, u.suffix), u.unit
			break
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &fieldError{field: "ttl", reason: "failed to parse time value [" + s + "]"}
	}
	return time.Duration(f * float64(unit)), nil
}
