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

package types

import (
	"math"
	"testing"
	"time"
)

func TestTryFromNumericWidening(t *testing.T) {
	v, err := TryFrom(KindDouble, int32(42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := v.AsFloat64()
	if !ok || f != 42 {
		t.Errorf("expected 42.0, got %v (ok=%v)", f, ok)
	}
}

func TestTryFromRejectsNonFiniteDouble(t *testing.T) {
	if _, err := TryFrom(KindDouble, math.Inf(1)); err == nil {
		t.Error("expected error for +Inf")
	}
	if _, err := TryFrom(KindDouble, math.NaN()); err == nil {
		t.Error("expected error for NaN")
	}
}

func TestTryFromIntegerOverflow(t *testing.T) {
	if _, err := TryFrom(KindInteger, int64(1)<<40); err == nil {
		t.Error("expected overflow error converting to int32")
	}
}

func TestTryFromDateTimeFromString(t *testing.T) {
	v, err := TryFrom(KindDateTime, "2023-01-02T03:04:05Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := v.AsTime()
	if !ok {
		t.Fatal("expected a DateTime value")
	}
	want := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEqualByteExact(t *testing.T) {
	a, _ := BinaryBlob([]byte{1, 2, 3})
	b, _ := BinaryBlob([]byte{1, 2, 3})
	c, _ := BinaryBlob([]byte{1, 2, 4})
	if !a.Equal(b) {
		t.Error("expected equal blobs to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected differing blobs to compare unequal")
	}
}

func TestEqualDateTimeAsUTCInstant(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	a, _ := DateTime(time.Date(2023, 1, 1, 12, 0, 0, 0, loc))
	b, _ := DateTime(time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC))
	if !a.Equal(b) {
		t.Error("expected same instant in different locations to compare equal")
	}
}

func TestUnsetEquality(t *testing.T) {
	if !Unset.Equal(Unset) {
		t.Error("Unset should equal Unset")
	}
	v, _ := Integer(0)
	if Unset.Equal(v) {
		t.Error("Unset should never equal a zero-valued Integer")
	}
}

func TestArrayElementTypeUniformity(t *testing.T) {
	if _, err := TryFrom(KindIntegerArray, []int64{1 << 40}); err == nil {
		t.Error("expected error for non-uniform/overflowing array element")
	}
}
