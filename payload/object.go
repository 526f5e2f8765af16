// Copyright © 2023 SECO Mind Srl
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package payload

import (
	"fmt"
	"sort"
	"time"

	"github.com/iancoleman/orderedmap"
	"github.com/nqd/flat"
	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/astarte-platform/astarte-device-go/types"
)

// ObjectAggregate is a decoded or to-be-encoded object aggregation payload,
// keyed by mapping endpoint tail. A tail may itself contain "/" for object
// interfaces whose mappings nest more than one level below the shared
// prefix; SerializeObject and DeserializeObject translate that to BSON
// sub-documents via flat's dotted-path convention.
type ObjectAggregate map[string]types.Value

// TailResolver resolves an object aggregate's flattened tail key to the
// Kind its mapping expects. payload stays free of a dependency on the
// interfaces package; callers adapt interfaces.Interface.ObjectMappingByTail.
type TailResolver func(tail string) (types.Kind, bool)

// SerializeObject encodes obj into a BSON envelope. Tails containing "/"
// are unflattened into nested sub-documents via flat.Unflatten, then
// rebuilt as sorted bson.D documents so the wire bytes are deterministic
// across runs regardless of Go's random map iteration order.
func SerializeObject(obj ObjectAggregate, timestamp *time.Time) ([]byte, error) {
	flatMap := make(map[string]any, len(obj))
	for tail, v := range obj {
		raw, err := toBSON(v)
		if err != nil {
			return nil, err
		}
		flatMap[flatKey(tail)] = raw
	}

	nested, err := flat.Unflatten(flatMap, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBSON, err)
	}

	b, err := bson.Marshal(envelope{V: sortedDoc(nested), T: timestamp})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBSON, err)
	}
	return b, nil
}

// sortedDoc recursively rebuilds a map[string]any (as produced by
// flat.Unflatten) into a bson.D with keys in sorted order.
func sortedDoc(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		if sub, ok := v.(map[string]any); ok {
			v = sortedDoc(sub)
		}
		doc = append(doc, bson.E{Key: k, Value: v})
	}
	return doc
}

// DeserializeObject decodes a BSON object-aggregate envelope. Every key in
// the decoded document (after flattening nested sub-documents back to
// dotted tails via flat.Flatten) is resolved through resolve; a key that
// does not resolve to a mapping fails with ErrUnknownKey.
func DeserializeObject(data []byte, resolve TailResolver, expectTimestamp bool) (ObjectAggregate, *time.Time, error) {
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBSON, err)
	}

	value, ok := raw["v"]
	if !ok {
		return nil, nil, ErrMissingValue
	}

	ts, err := extractTimestamp(raw, expectTimestamp)
	if err != nil {
		return nil, nil, err
	}

	nested, ok := value.(bson.M)
	if !ok {
		if asD, ok2 := value.(bson.D); ok2 {
			nested = asD.Map()
		} else {
			return nil, nil, ErrNotObject
		}
	}

	flatMap, err := flat.Flatten(map[string]any(nested), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBSON, err)
	}

	result := make(ObjectAggregate, len(flatMap))
	for key, host := range flatMap {
		tail := unflatKey(key)
		kind, ok := resolve(tail)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q (%s)", ErrUnknownKey, tail, describeForError(flatMap, key))
		}
		v, err := fromBSON(kind, host)
		if err != nil {
			return nil, nil, err
		}
		result[tail] = v
	}

	return result, ts, nil
}

// flatKey/unflatKey translate between the '/'-delimited tail convention
// mapping endpoints use and flat's '.'-delimited dotted-path convention.
func flatKey(tail string) string {
	out := make([]byte, 0, len(tail))
	for i := 0; i < len(tail); i++ {
		if tail[i] == '/' {
			out = append(out, '.')
		} else {
			out = append(out, tail[i])
		}
	}
	return string(out)
}

func unflatKey(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			out = append(out, '/')
		} else {
			out = append(out, key[i])
		}
	}
	return string(out)
}

// describeForError renders the whole decoded object as a key-ordered JSON
// document (via orderedmap, so the error is reproducible across runs) and
// pulls out the single offending field with gjson for the error message.
func describeForError(flatMap map[string]any, key string) string {
	ordered := orderedmap.New()
	keys := make([]string, 0, len(flatMap))
	for k := range flatMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ordered.Set(k, flatMap[k])
	}

	b, err := ordered.MarshalJSON()
	if err != nil {
		return "<unrepresentable>"
	}
	return gjson.GetBytes(b, gjson.Escape(key)).Raw
}
