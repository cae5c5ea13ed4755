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
	"bytes"
	"encoding/json"
	"reflect"
)

// decodeSource decodes a JSON object keeping numbers as json.Number so
// that a round trip does not change their representation
func decodeSource(source []byte) (map[string]interface{}, error) {
	m := map[string]interface{}{}
	if len(bytes.TrimSpace(source)) == 0 {
		return m, nil
	}
	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

// mergeInto applies changes to source. Nested objects are merged
// recursively, every other value replaces the existing one. It reports
// whether source was modified.
func mergeInto(source, changes map[string]interface{}) bool {
	modified := false
	for k, change := range changes {
		old, exists := source[k]
		if oldMap, ok := old.(map[string]interface{}); ok {
			if changeMap, ok := change.(map[string]interface{}); ok {
				if mergeInto(oldMap, changeMap) {
					modified = true
				}
				continue
			}
		}
		if !exists || !reflect.DeepEqual(old, change) {
			modified = true
		}
		source[k] = change
	}
	return modified
}
