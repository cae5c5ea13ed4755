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
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Script operations. A script sets ScriptContext.Op to tell the update
// what to do with the document.
const (
	OpIndex  = "index"
	OpCreate = "create"
	OpNone   = "none"
	OpDelete = "delete"
)

// ScriptContext is what a script sees and changes
type ScriptContext struct {
	Op     string
	Source map[string]interface{}
	Params map[string]interface{}
}

// Script is a natively registered update script
type Script func(ctx *ScriptContext) error

// Scripts is a registry of named update scripts, safe for concurrent use
type Scripts struct {
	mu      sync.RWMutex
	scripts map[string]Script
}

// NewScripts returns a registry holding the built-in scripts
func NewScripts() *Scripts {
	s := &Scripts{scripts: map[string]Script{}}
	s.Register("increment", increment)
	s.Register("set", set)
	s.Register("remove", remove)
	s.Register("delete", func(ctx *ScriptContext) error {
		ctx.Op = OpDelete
		return nil
	})
	s.Register("noop", func(ctx *ScriptContext) error {
		ctx.Op = OpNone
		return nil
	})
	return s
}

func (s *Scripts) Register(name string, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[name] = script
}

func (s *Scripts) Get(name string) (Script, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	script, ok := s.scripts[name]
	return script, ok
}

func (s *Scripts) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.scripts))
	for name := range s.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// increment adds params.by (default 1) to the numeric params.field
func increment(ctx *ScriptContext) error {
	field, err := stringParam(ctx.Params, "field")
	if err != nil {
		return err
	}
	by := json.Number("1")
	if v, ok := ctx.Params["by"]; ok {
		if by, err = toNumber(v); err != nil {
			return fmt.Errorf("param [by]: %w", err)
		}
	}

	parent, key := walk(ctx.Source, field, true)
	current := json.Number("0")
	if v, ok := parent[key]; ok && v != nil {
		if current, err = toNumber(v); err != nil {
			return fmt.Errorf("field [%s]: %w", field, err)
		}
	}
	parent[key] = add(current, by)
	return nil
}

// set assigns params.value to params.field
func set(ctx *ScriptContext) error {
	field, err := stringParam(ctx.Params, "field")
	if err != nil {
		return err
	}
	value, ok := ctx.Params["value"]
	if !ok {
		return fmt.Errorf("missing param [value]")
	}
	parent, key := walk(ctx.Source, field, true)
	parent[key] = value
	return nil
}

// remove deletes params.field. Removing an absent field is a no-op.
func remove(ctx *ScriptContext) error {
	field, err := stringParam(ctx.Params, "field")
	if err != nil {
		return err
	}
	parent, key := walk(ctx.Source, field, false)
	if parent == nil {
		ctx.Op = OpNone
		return nil
	}
	if _, ok := parent[key]; !ok {
		ctx.Op = OpNone
		return nil
	}
	delete(parent, key)
	return nil
}

// walk resolves a dotted path to its parent object and last key
func walk(source map[string]interface{}, path string, create bool) (map[string]interface{}, string) {
	parts := strings.Split(path, ".")
	cur := source
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			if !create {
				return nil, ""
			}
			next = map[string]interface{}{}
			cur[p] = next
		}
		cur = next
	}
	return cur, parts[len(parts)-1]
}

func stringParam(params map[string]interface{}, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing param [%s]", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("param [%s] must be a non-empty string", name)
	}
	return s, nil
}

func toNumber(v interface{}) (json.Number, error) {
	switch n := v.(type) {
	case json.Number:
		return n, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return json.Number(fmt.Sprint(n)), nil
	default:
		return "", fmt.Errorf("%v is not a number", v)
	}
}

// add keeps integers integral
func add(a, b json.Number) json.Number {
	ai, aErr := a.Int64()
	bi, bErr := b.Int64()
	if aErr == nil && bErr == nil {
		return json.Number(fmt.Sprint(ai + bi))
	}
	af, _ := a.Float64()
	bf, _ := b.Float64()
	return json.Number(fmt.Sprint(af + bf))
}
