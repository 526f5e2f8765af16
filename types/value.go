// Copyright © 2020 Ispirata Srl
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

// Package types implements the Astarte value type: a tagged variant covering
// every scalar and array type a mapping can carry, plus the distinguished
// Unset value used by unsettable properties.
package types

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// Kind identifies which variant a Value holds. It mirrors
// interfaces.MappingType, but lives in this package so that types has
// no dependency on interfaces.
type Kind string

const (
	KindDouble           Kind = "double"
	KindInteger          Kind = "integer"
	KindBoolean          Kind = "boolean"
	KindLongInteger      Kind = "longinteger"
	KindString           Kind = "string"
	KindBinaryBlob       Kind = "binaryblob"
	KindDateTime         Kind = "datetime"
	KindDoubleArray      Kind = "doublearray"
	KindIntegerArray     Kind = "integerarray"
	KindBooleanArray     Kind = "booleanarray"
	KindLongIntegerArray Kind = "longintegerarray"
	KindStringArray      Kind = "stringarray"
	KindBinaryBlobArray  Kind = "binaryblobarray"
	KindDateTimeArray    Kind = "datetimearray"
	// KindUnset is legal only for property mappings that declare AllowUnset.
	KindUnset Kind = "unset"
)

// ErrConversion is returned when a host value cannot be converted to the
// requested Astarte Kind without loss of information.
var ErrConversion = errors.New("astarte type conversion error")

// Value is a tagged union holding exactly one Astarte-typed value (or Unset).
// It is comparable with Equal, which performs a structural, value-typed
// comparison rather than relying on Go's == (byte slices are not comparable
// with ==, and datetimes must compare as UTC instants regardless of the
// *time.Location attached to them).
type Value struct {
	kind Kind
	v    any
}

// Unset is the distinguished value denoting explicit absence of a property.
var Unset = Value{kind: KindUnset}

// Kind returns which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsUnset reports whether v is the Unset variant.
func (v Value) IsUnset() bool { return v.kind == KindUnset }

// Raw returns the underlying host value. Callers should prefer the typed
// As* accessors below when the Kind is known.
func (v Value) Raw() any { return v.v }

// AsFloat64 returns the Double payload, or ok=false if v is not a Double.
func (v Value) AsFloat64() (float64, bool) { f, ok := v.v.(float64); return f, ok && v.kind == KindDouble }

// AsInt32 returns the Integer payload, or ok=false if v is not an Integer.
func (v Value) AsInt32() (int32, bool) { i, ok := v.v.(int32); return i, ok && v.kind == KindInteger }

// AsInt64 returns the LongInteger payload, or ok=false if v is not a LongInteger.
func (v Value) AsInt64() (int64, bool) {
	i, ok := v.v.(int64)
	return i, ok && v.kind == KindLongInteger
}

// AsBool returns the Boolean payload, or ok=false if v is not a Boolean.
func (v Value) AsBool() (bool, bool) { b, ok := v.v.(bool); return b, ok && v.kind == KindBoolean }

// AsString returns the String payload, or ok=false if v is not a String.
func (v Value) AsString() (string, bool) {
	s, ok := v.v.(string)
	return s, ok && v.kind == KindString
}

// AsBytes returns the BinaryBlob payload, or ok=false if v is not a BinaryBlob.
func (v Value) AsBytes() ([]byte, bool) {
	b, ok := v.v.([]byte)
	return b, ok && v.kind == KindBinaryBlob
}

// AsTime returns the DateTime payload, or ok=false if v is not a DateTime.
func (v Value) AsTime() (time.Time, bool) {
	t, ok := v.v.(time.Time)
	return t, ok && v.kind == KindDateTime
}

func newValue(kind Kind, raw any) Value {
	return Value{kind: kind, v: raw}
}

// Double builds a Double-kind Value, failing if f is NaN or +/-Inf.
func Double(f float64) (Value, error) {
	if err := checkFinite(f); err != nil {
		return Value{}, err
	}
	return newValue(KindDouble, f), nil
}

func checkFinite(f float64) error {
	if f != f || f > 1.7976931348623157e+308 || f < -1.7976931348623157e+308 {
		return fmt.Errorf("%w: non-finite double %v", ErrConversion, f)
	}
	return nil
}

// Integer builds an Integer-kind Value.
func Integer(i int32) (Value, error) {
	return newValue(KindInteger, i), nil
}

// Boolean builds a Boolean-kind Value.
func Boolean(b bool) (Value, error) {
	return newValue(KindBoolean, b), nil
}

// LongInteger builds a LongInteger-kind Value.
func LongInteger(i int64) (Value, error) {
	return newValue(KindLongInteger, i), nil
}

// String builds a String-kind Value.
func String(s string) (Value, error) {
	return newValue(KindString, s), nil
}

// BinaryBlob builds a BinaryBlob-kind Value.
func BinaryBlob(b []byte) (Value, error) {
	cp := make([]byte, len(b))
	copy(cp, b)
	return newValue(KindBinaryBlob, cp), nil
}

// DateTime builds a DateTime-kind Value, normalized to UTC.
func DateTime(t time.Time) (Value, error) {
	return newValue(KindDateTime, t.UTC()), nil
}

// DoubleArray builds a DoubleArray-kind Value.
func DoubleArray(fs []float64) (Value, error) {
	for _, f := range fs {
		if err := checkFinite(f); err != nil {
			return Value{}, err
		}
	}
	cp := append([]float64(nil), fs...)
	return newValue(KindDoubleArray, cp), nil
}

// IntegerArray builds an IntegerArray-kind Value.
func IntegerArray(is []int32) (Value, error) {
	cp := append([]int32(nil), is...)
	return newValue(KindIntegerArray, cp), nil
}

// BooleanArray builds a BooleanArray-kind Value.
func BooleanArray(bs []bool) (Value, error) {
	cp := append([]bool(nil), bs...)
	return newValue(KindBooleanArray, cp), nil
}

// LongIntegerArray builds a LongIntegerArray-kind Value.
func LongIntegerArray(is []int64) (Value, error) {
	cp := append([]int64(nil), is...)
	return newValue(KindLongIntegerArray, cp), nil
}

// StringArray builds a StringArray-kind Value.
func StringArray(ss []string) (Value, error) {
	cp := append([]string(nil), ss...)
	return newValue(KindStringArray, cp), nil
}

// BinaryBlobArray builds a BinaryBlobArray-kind Value.
func BinaryBlobArray(bs [][]byte) (Value, error) {
	cp := make([][]byte, len(bs))
	for i, b := range bs {
		cp[i] = append([]byte(nil), b...)
	}
	return newValue(KindBinaryBlobArray, cp), nil
}

// DateTimeArray builds a DateTimeArray-kind Value, normalizing every element to UTC.
func DateTimeArray(ts []time.Time) (Value, error) {
	cp := make([]time.Time, len(ts))
	for i, t := range ts {
		cp[i] = t.UTC()
	}
	return newValue(KindDateTimeArray, cp), nil
}

// TryFrom constructs a Value of the requested kind out of an arbitrary host
// value, the Go analogue of the source's "construct-by-try-into". It fails
// with ErrConversion when host cannot fit kind (e.g. a non-finite float64
// into KindDouble, an int that overflows int32 into KindInteger, or a slice
// whose element types are not uniform).
func TryFrom(kind Kind, host any) (Value, error) {
	switch kind {
	case KindUnset:
		return Unset, nil
	case KindDouble:
		f, err := toFloat64(host)
		if err != nil {
			return Value{}, err
		}
		return Double(f)
	case KindInteger:
		i, err := toInt32(host)
		if err != nil {
			return Value{}, err
		}
		return Integer(i)
	case KindLongInteger:
		i, err := toInt64(host)
		if err != nil {
			return Value{}, err
		}
		return LongInteger(i)
	case KindBoolean:
		b, ok := host.(bool)
		if !ok {
			return Value{}, fmt.Errorf("%w: %T is not a bool", ErrConversion, host)
		}
		return Boolean(b)
	case KindString:
		s, ok := host.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: %T is not a string", ErrConversion, host)
		}
		return String(s)
	case KindBinaryBlob:
		b, ok := host.([]byte)
		if !ok {
			return Value{}, fmt.Errorf("%w: %T is not a []byte", ErrConversion, host)
		}
		return BinaryBlob(b)
	case KindDateTime:
		return dateTimeFrom(host)
	case KindDoubleArray:
		return doubleArrayFrom(host)
	case KindIntegerArray:
		return integerArrayFrom(host)
	case KindLongIntegerArray:
		return longIntegerArrayFrom(host)
	case KindBooleanArray:
		bs, ok := host.([]bool)
		if !ok {
			return Value{}, fmt.Errorf("%w: %T is not a []bool", ErrConversion, host)
		}
		return BooleanArray(bs)
	case KindStringArray:
		ss, ok := host.([]string)
		if !ok {
			return Value{}, fmt.Errorf("%w: %T is not a []string", ErrConversion, host)
		}
		return StringArray(ss)
	case KindBinaryBlobArray:
		bs, ok := host.([][]byte)
		if !ok {
			return Value{}, fmt.Errorf("%w: %T is not a [][]byte", ErrConversion, host)
		}
		return BinaryBlobArray(bs)
	case KindDateTimeArray:
		return dateTimeArrayFrom(host)
	default:
		return Value{}, fmt.Errorf("%w: unknown kind %q", ErrConversion, kind)
	}
}

// dateTimeFrom accepts time.Time/*time.Time natively, and leniently parses a
// string host value with dateparse.ParseAny, covering devices that produce
// local timestamps as human-formatted strings rather than time.Time values.
func dateTimeFrom(host any) (Value, error) {
	switch t := host.(type) {
	case time.Time:
		return DateTime(t)
	case *time.Time:
		return DateTime(*t)
	case string:
		parsed, err := dateparse.ParseAny(t)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		return DateTime(parsed)
	default:
		return Value{}, fmt.Errorf("%w: %T is not a datetime", ErrConversion, host)
	}
}

func dateTimeArrayFrom(host any) (Value, error) {
	switch ts := host.(type) {
	case []time.Time:
		return DateTimeArray(ts)
	case []*time.Time:
		out := make([]time.Time, len(ts))
		for i, t := range ts {
			out[i] = *t
		}
		return DateTimeArray(out)
	default:
		return Value{}, fmt.Errorf("%w: %T is not a []time.Time", ErrConversion, host)
	}
}

func toFloat64(host any) (float64, error) {
	switch n := host.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %T is not numeric", ErrConversion, host)
	}
}

func toInt32(host any) (int32, error) {
	switch n := host.(type) {
	case int:
		return boundedInt32(int64(n))
	case int8:
		return int32(n), nil
	case int16:
		return int32(n), nil
	case int32:
		return n, nil
	case uint:
		return boundedInt32(int64(n))
	case uint8:
		return int32(n), nil
	case uint16:
		return int32(n), nil
	case uint32:
		return boundedInt32(int64(n))
	case int64:
		return boundedInt32(n)
	default:
		return 0, fmt.Errorf("%w: %T is not an integer", ErrConversion, host)
	}
}

func boundedInt32(n int64) (int32, error) {
	if n > 2147483647 || n < -2147483648 {
		return 0, fmt.Errorf("%w: %d overflows int32", ErrConversion, n)
	}
	return int32(n), nil
}

func toInt64(host any) (int64, error) {
	switch n := host.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > 1<<63-1 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrConversion, n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: %T is not an integer", ErrConversion, host)
	}
}

func doubleArrayFrom(host any) (Value, error) {
	switch arr := host.(type) {
	case []float64:
		return DoubleArray(arr)
	case []float32:
		out := make([]float64, len(arr))
		for i, f := range arr {
			out[i] = float64(f)
		}
		return DoubleArray(out)
	case []int:
		return DoubleArray(intsToFloats(arr))
	default:
		return Value{}, fmt.Errorf("%w: %T is not a numeric array", ErrConversion, host)
	}
}

func intsToFloats(arr []int) []float64 {
	out := make([]float64, len(arr))
	for i, n := range arr {
		out[i] = float64(n)
	}
	return out
}

func integerArrayFrom(host any) (Value, error) {
	switch arr := host.(type) {
	case []int32:
		return IntegerArray(arr)
	case []int:
		out := make([]int32, len(arr))
		for i, n := range arr {
			v, err := boundedInt32(int64(n))
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return IntegerArray(out)
	default:
		return Value{}, fmt.Errorf("%w: %T is not an integer array", ErrConversion, host)
	}
}

func longIntegerArrayFrom(host any) (Value, error) {
	switch arr := host.(type) {
	case []int64:
		return LongIntegerArray(arr)
	case []int:
		out := make([]int64, len(arr))
		for i, n := range arr {
			out[i] = int64(n)
		}
		return LongIntegerArray(out)
	default:
		return Value{}, fmt.Errorf("%w: %T is not a long integer array", ErrConversion, host)
	}
}

// Equal performs a structural, value-typed comparison: byte blobs compare
// byte-exact, datetimes compare as UTC instants, and mismatched Kinds are
// never equal even if the host representation happens to coincide.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindUnset:
		return true
	case KindBinaryBlob:
		return bytes.Equal(v.v.([]byte), other.v.([]byte))
	case KindBinaryBlobArray:
		a, b := v.v.([][]byte), other.v.([][]byte)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !bytes.Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case KindDateTime:
		return v.v.(time.Time).Equal(other.v.(time.Time))
	case KindDateTimeArray:
		a, b := v.v.([]time.Time), other.v.([]time.Time)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case KindDoubleArray:
		return equalSlice(v.v.([]float64), other.v.([]float64))
	case KindIntegerArray:
		return equalSlice(v.v.([]int32), other.v.([]int32))
	case KindLongIntegerArray:
		return equalSlice(v.v.([]int64), other.v.([]int64))
	case KindBooleanArray:
		return equalSlice(v.v.([]bool), other.v.([]bool))
	case KindStringArray:
		return equalSlice(v.v.([]string), other.v.([]string))
	default:
		return v.v == other.v
	}
}

func equalSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	if v.kind == KindUnset {
		return "Unset"
	}
	return fmt.Sprintf("%s(%v)", v.kind, v.v)
}
