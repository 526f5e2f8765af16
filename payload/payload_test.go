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
	"testing"
	"time"

	"github.com/astarte-platform/astarte-device-go/types"
)

func TestSerializeDeserializeIndividualRoundTrip(t *testing.T) {
	v, _ := types.Double(3.14)
	data, err := SerializeIndividual(v, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ts, err := DeserializeIndividual(data, types.KindDouble, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != nil {
		t.Errorf("expected no timestamp, got %v", ts)
	}
	if !got.Equal(v) {
		t.Errorf("got %v, want %v", got, v)
	}
}

func TestSerializeDeserializeWithExplicitTimestamp(t *testing.T) {
	v, _ := types.Integer(42)
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := SerializeIndividual(v, &when)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ts, err := DeserializeIndividual(data, types.KindInteger, true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts == nil || !ts.Equal(when) {
		t.Errorf("expected timestamp %v, got %v", when, ts)
	}
	if !got.Equal(v) {
		t.Errorf("got %v, want %v", got, v)
	}
}

func TestDeserializeIndividualRejectsUnexpectedTimestamp(t *testing.T) {
	v, _ := types.Boolean(true)
	when := time.Now().UTC()
	data, _ := SerializeIndividual(v, &when)

	if _, _, err := DeserializeIndividual(data, types.KindBoolean, false, false); err == nil {
		t.Error("expected ErrUnexpectedTimestamp")
	}
}

func TestDeserializeIndividualUnset(t *testing.T) {
	data, err := SerializeIndividual(types.Unset, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected a zero-length payload for Unset, got %d bytes", len(data))
	}
	got, _, err := DeserializeIndividual(data, types.KindString, false, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsUnset() {
		t.Errorf("expected Unset, got %v", got)
	}
}

func TestDeserializeIndividualRejectsUnsetWhenNotAllowed(t *testing.T) {
	data, err := SerializeIndividual(types.Unset, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := DeserializeIndividual(data, types.KindString, false, false); err == nil {
		t.Error("expected ErrUnsetNotAllowed")
	}
}

func TestSerializeDeserializeObjectRoundTrip(t *testing.T) {
	a, _ := types.Double(4.2)
	b, _ := types.String("obj")
	obj := ObjectAggregate{"endpoint1": a, "endpoint2": b}

	data, err := SerializeObject(obj, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolve := func(tail string) (types.Kind, bool) {
		switch tail {
		case "endpoint1":
			return types.KindDouble, true
		case "endpoint2":
			return types.KindString, true
		default:
			return "", false
		}
	}

	got, ts, err := DeserializeObject(data, resolve, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != nil {
		t.Errorf("expected no timestamp, got %v", ts)
	}
	if !got["endpoint1"].Equal(a) || !got["endpoint2"].Equal(b) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestDeserializeObjectRejectsUnknownKey(t *testing.T) {
	a, _ := types.Double(1.0)
	data, err := SerializeObject(ObjectAggregate{"unexpected": a}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolve := func(tail string) (types.Kind, bool) { return "", false }
	if _, _, err := DeserializeObject(data, resolve, false); err == nil {
		t.Error("expected ErrUnknownKey")
	}
}

func TestDeserializeObjectRejectsScalarValue(t *testing.T) {
	v, _ := types.Integer(1)
	data, _ := SerializeIndividual(v, nil)
	resolve := func(tail string) (types.Kind, bool) { return types.KindInteger, true }
	if _, _, err := DeserializeObject(data, resolve, false); err == nil {
		t.Error("expected ErrNotObject")
	}
}
