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

package device

import (
	"context"
	"fmt"
	"time"

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/store"
	"github.com/astarte-platform/astarte-device-go/types"
)

// storedProp builds the store.StoredProp row for a successfully-transmitted
// property write.
func storedProp(interfaceName, path string, v types.Value, iface interfaces.Interface) store.StoredProp {
	return store.StoredProp{
		Interface:      interfaceName,
		Path:           path,
		Value:          v,
		InterfaceMajor: iface.MajorVersion,
		Ownership:      iface.Ownership,
	}
}

// Send transmits a single value on interfaceName at rawPath (§4.I send
// pipeline): resolve the mapping, coerce/validate the value against it,
// skip the transmit if this is a property already holding the same value,
// publish, then persist the new property value on success.
func (d *Device) Send(ctx context.Context, interfaceName, rawPath string, value types.Value, timestamp *time.Time) error {
	path, err := interfaces.ParseMappingPath(rawPath)
	if err != nil {
		return wrapErr(KindTopic, interfaceName, rawPath, err)
	}

	iface, ok := d.catalog.Get(interfaceName)
	if !ok {
		return wrapErr(KindValidation, interfaceName, rawPath, ErrMissingInterface)
	}
	mapping, ok := iface.AsMappingRef(path)
	if !ok {
		return wrapErr(KindValidation, interfaceName, rawPath, ErrMissingMapping)
	}
	if iface.Aggregation == interfaces.ObjectAggregation {
		return wrapErr(KindValidation, interfaceName, rawPath, fmt.Errorf("%w: interface is object-aggregated, use SendObject", ErrAggregationMismatch))
	}

	coerced, err := coerceValue(mapping, value)
	if err != nil {
		return wrapErr(KindValidation, interfaceName, rawPath, err)
	}
	if err := validateTimestamp(mapping, timestamp); err != nil {
		return wrapErr(KindValidation, interfaceName, rawPath, err)
	}

	isProperty := iface.Type == interfaces.PropertiesType
	if isProperty {
		stored, ok, err := d.store.LoadProp(ctx, interfaceName, rawPath, iface.MajorVersion)
		if err != nil {
			return wrapErr(KindStore, interfaceName, rawPath, err)
		}
		if ok && stored.Equal(coerced) {
			return nil
		}
	}

	if err := d.conn.SendIndividual(ctx, interfaceName, path, coerced, timestamp, mapping.Reliability); err != nil {
		return wrapErr(KindTransport, interfaceName, rawPath, err)
	}

	if isProperty {
		if coerced.IsUnset() {
			if err := d.store.UnsetProp(ctx, interfaceName, rawPath); err != nil {
				return wrapErr(KindStore, interfaceName, rawPath, err)
			}
			return nil
		}
		prop := storedProp(interfaceName, rawPath, coerced, iface)
		if err := d.store.StoreProp(ctx, prop); err != nil {
			return wrapErr(KindStore, interfaceName, rawPath, err)
		}
	}
	return nil
}

// SendObject transmits an object-aggregated value (§4.I send pipeline,
// object variant). aggregate must supply exactly the set of keys the
// interface's mappings declare (by endpoint tail); missing or extra keys
// fail without transmitting, per the resolved completeness rule for object
// sends.
func (d *Device) SendObject(ctx context.Context, interfaceName, rawPath string, aggregate map[string]types.Value, timestamp *time.Time) error {
	path, err := interfaces.ParseMappingPath(rawPath)
	if err != nil {
		return wrapErr(KindTopic, interfaceName, rawPath, err)
	}

	iface, ok := d.catalog.Get(interfaceName)
	if !ok {
		return wrapErr(KindValidation, interfaceName, rawPath, ErrMissingInterface)
	}
	mappings, ok := iface.AsObjectRef()
	if !ok {
		return wrapErr(KindValidation, interfaceName, rawPath, fmt.Errorf("%w: interface is not object-aggregated", ErrAggregationMismatch))
	}

	coerced, err := coerceObjectValues(mappings, aggregate)
	if err != nil {
		return wrapErr(KindValidation, interfaceName, rawPath, err)
	}
	if len(mappings) > 0 {
		if err := validateTimestamp(mappings[0], timestamp); err != nil {
			return wrapErr(KindValidation, interfaceName, rawPath, err)
		}
	}

	reliability := interfaces.UnreliableReliability
	if len(mappings) > 0 {
		reliability = mappings[0].Reliability
	}
	if err := d.conn.SendObject(ctx, interfaceName, path, coerced, timestamp, reliability); err != nil {
		return wrapErr(KindTransport, interfaceName, rawPath, err)
	}
	return nil
}

func coerceValue(mapping interfaces.Mapping, v types.Value) (types.Value, error) {
	if v.IsUnset() {
		if !mapping.AllowUnset {
			return types.Value{}, ErrUnsetNotAllowed
		}
		return v, nil
	}

	expected := types.Kind(mapping.Type)
	if v.Kind() == expected {
		return v, nil
	}

	coerced, err := types.TryFrom(expected, v.Raw())
	if err != nil {
		return types.Value{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return coerced, nil
}

func coerceObjectValues(mappings []interfaces.Mapping, values map[string]types.Value) (map[string]types.Value, error) {
	byTail := make(map[string]interfaces.Mapping, len(mappings))
	for _, m := range mappings {
		byTail[m.EndpointTail()] = m
	}
	if len(values) != len(byTail) {
		return nil, fmt.Errorf("%w: expected %d keys, got %d", ErrAggregationMismatch, len(byTail), len(values))
	}

	out := make(map[string]types.Value, len(values))
	for tail, v := range values {
		mapping, ok := byTail[tail]
		if !ok {
			return nil, fmt.Errorf("%w: unknown object key %q", ErrAggregationMismatch, tail)
		}
		cv, err := coerceValue(mapping, v)
		if err != nil {
			return nil, err
		}
		out[tail] = cv
	}
	return out, nil
}

func validateTimestamp(mapping interfaces.Mapping, ts *time.Time) error {
	if ts != nil && !mapping.ExplicitTimestamp {
		return ErrTimestampPolicy
	}
	return nil
}
