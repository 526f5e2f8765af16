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
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/astarte-platform/astarte-device-go/types"
)

// envelope is the wire shape of every individual-interface payload: a "v"
// field holding the value, and an optional "t" field holding an explicit
// timestamp.
type envelope struct {
	V any        `bson:"v"`
	T *time.Time `bson:"t,omitempty"`
}

// SerializeIndividual encodes v (and, if non-nil, an explicit timestamp)
// into a BSON envelope suitable for publishing on an individual mapping's
// topic. An Unset value serializes as a zero-length payload (§4.E, §6: an
// empty payload on a property topic denotes unset), not as a BSON document.
func SerializeIndividual(v types.Value, timestamp *time.Time) ([]byte, error) {
	if v.IsUnset() {
		return []byte{}, nil
	}

	raw, err := toBSON(v)
	if err != nil {
		return nil, err
	}
	b, err := bson.Marshal(envelope{V: raw, T: timestamp})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBSON, err)
	}
	return b, nil
}

// DeserializeIndividual decodes a BSON envelope into a Value of the given
// Kind, and the explicit timestamp if one was attached. It fails with
// ErrUnexpectedTimestamp if a timestamp is present on a mapping that does
// not expect one (callers pass expectTimestamp=false for such mappings). A
// zero-length payload decodes as Unset iff allowUnset is true; otherwise it
// fails with ErrUnsetNotAllowed.
func DeserializeIndividual(data []byte, kind types.Kind, expectTimestamp, allowUnset bool) (types.Value, *time.Time, error) {
	if len(data) == 0 {
		if !allowUnset {
			return types.Value{}, nil, ErrUnsetNotAllowed
		}
		return types.Unset, nil, nil
	}

	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		return types.Value{}, nil, fmt.Errorf("%w: %v", ErrBSON, err)
	}

	value, ok := raw["v"]
	if !ok {
		return types.Value{}, nil, ErrMissingValue
	}

	ts, err := extractTimestamp(raw, expectTimestamp)
	if err != nil {
		return types.Value{}, nil, err
	}

	if value == nil {
		if !allowUnset {
			return types.Value{}, nil, ErrUnsetNotAllowed
		}
		return types.Unset, ts, nil
	}

	v, err := fromBSON(kind, value)
	if err != nil {
		return types.Value{}, nil, err
	}
	return v, ts, nil
}

func extractTimestamp(raw bson.M, expectTimestamp bool) (*time.Time, error) {
	rawTS, ok := raw["t"]
	if !ok {
		return nil, nil
	}
	if !expectTimestamp {
		return nil, ErrUnexpectedTimestamp
	}
	switch t := rawTS.(type) {
	case time.Time:
		ts := t
		return &ts, nil
	case primitive.DateTime:
		ts := t.Time()
		return &ts, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a timestamp", ErrTypeMismatch, rawTS)
	}
}

// toBSON converts a types.Value into a BSON-marshalable host value. The
// mongo-driver bson codec natively marshals every Go primitive and slice
// type Value produces, so this is a Kind-driven unwrap, not a conversion.
func toBSON(v types.Value) (any, error) {
	switch v.Kind() {
	case types.KindUnset:
		return nil, nil
	case types.KindDouble:
		f, _ := v.AsFloat64()
		return f, nil
	case types.KindInteger:
		i, _ := v.AsInt32()
		return i, nil
	case types.KindLongInteger:
		i, _ := v.AsInt64()
		return i, nil
	case types.KindBoolean:
		b, _ := v.AsBool()
		return b, nil
	case types.KindString:
		s, _ := v.AsString()
		return s, nil
	case types.KindBinaryBlob:
		b, _ := v.AsBytes()
		return b, nil
	case types.KindDateTime:
		t, _ := v.AsTime()
		return t, nil
	default:
		return v.Raw(), nil
	}
}

// fromBSON converts a decoded BSON field back into a types.Value of the
// expected Kind, via types.TryFrom so numeric widening and overflow
// checking stay in one place.
func fromBSON(kind types.Kind, raw any) (types.Value, error) {
	v, err := types.TryFrom(kind, normalizeBSONHost(raw))
	if err != nil {
		return types.Value{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return v, nil
}

// normalizeBSONHost widens bson.A (decoded array) elements and
// primitive.DateTime into the host shapes types.TryFrom understands.
func normalizeBSONHost(raw any) any {
	switch val := raw.(type) {
	case primitive.DateTime:
		return val.Time()
	case primitive.Binary:
		return val.Data
	case bson.A:
		return normalizeBSONArray(val)
	default:
		return raw
	}
}

func normalizeBSONArray(arr bson.A) any {
	if len(arr) == 0 {
		return []any{}
	}
	switch arr[0].(type) {
	case float64:
		out := make([]float64, len(arr))
		for i, e := range arr {
			out[i], _ = e.(float64)
		}
		return out
	case int32:
		out := make([]int32, len(arr))
		for i, e := range arr {
			out[i], _ = e.(int32)
		}
		return out
	case int64:
		out := make([]int64, len(arr))
		for i, e := range arr {
			out[i], _ = e.(int64)
		}
		return out
	case bool:
		out := make([]bool, len(arr))
		for i, e := range arr {
			out[i], _ = e.(bool)
		}
		return out
	case string:
		out := make([]string, len(arr))
		for i, e := range arr {
			out[i], _ = e.(string)
		}
		return out
	case primitive.Binary:
		out := make([][]byte, len(arr))
		for i, e := range arr {
			if b, ok := e.(primitive.Binary); ok {
				out[i] = b.Data
			}
		}
		return out
	case primitive.DateTime:
		out := make([]time.Time, len(arr))
		for i, e := range arr {
			if t, ok := e.(primitive.DateTime); ok {
				out[i] = t.Time()
			}
		}
		return out
	default:
		return []any(arr)
	}
}
