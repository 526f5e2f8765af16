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

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/types"
)

const (
	deviceOwnership = interfaces.DeviceOwnership
	serverOwnership = interfaces.ServerOwnership
)

type memoryKey struct {
	iface string
	path  string
}

type memoryRecord struct {
	value     *types.Value
	major     int
	ownership interfaces.Ownership
}

// MemoryStore is a volatile, process-lifetime PropertyStore. It is the
// default store for a device that has no durable persistence requirement,
// and the reference implementation every other PropertyStore is tested
// against.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[memoryKey]memoryRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey]memoryRecord)}
}

func (m *MemoryStore) StoreProp(_ context.Context, prop StoredProp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := prop.Value
	m.records[memoryKey{prop.Interface, prop.Path}] = memoryRecord{
		value:     &v,
		major:     prop.InterfaceMajor,
		ownership: prop.Ownership,
	}
	return nil
}

func (m *MemoryStore) LoadProp(_ context.Context, interfaceName, path string, interfaceMajor int) (types.Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey{interfaceName, path}
	record, ok := m.records[key]
	if !ok {
		return types.Value{}, false, nil
	}
	if record.major != interfaceMajor {
		delete(m.records, key)
		return types.Value{}, false, nil
	}
	if record.value == nil {
		return types.Value{}, false, nil
	}
	return *record.value, true, nil
}

func (m *MemoryStore) UnsetProp(_ context.Context, interfaceName, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey{interfaceName, path}
	record, ok := m.records[key]
	if !ok {
		return nil
	}
	record.value = nil
	m.records[key] = record
	return nil
}

func (m *MemoryStore) DeleteProp(_ context.Context, interfaceName, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, memoryKey{interfaceName, path})
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[memoryKey]memoryRecord)
	return nil
}

func (m *MemoryStore) LoadAllProps(_ context.Context) ([]StoredProp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]StoredProp, 0, len(m.records))
	for key, record := range m.records {
		if record.value == nil {
			continue
		}
		out = append(out, StoredProp{
			Interface:      key.iface,
			Path:           key.path,
			Value:          *record.value,
			InterfaceMajor: record.major,
			Ownership:      record.ownership,
		})
	}
	sortProps(out)
	return out, nil
}

func (m *MemoryStore) DeviceProps(ctx context.Context) ([]StoredProp, error) {
	return m.propsByOwnership(ctx, deviceOwnership)
}

func (m *MemoryStore) ServerProps(ctx context.Context) ([]StoredProp, error) {
	return m.propsByOwnership(ctx, serverOwnership)
}

func (m *MemoryStore) propsByOwnership(ctx context.Context, ownership interfaces.Ownership) ([]StoredProp, error) {
	all, err := m.LoadAllProps(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StoredProp, 0, len(all))
	for _, p := range all {
		if p.Ownership == ownership {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) InterfaceProps(ctx context.Context, interfaceName string) ([]StoredProp, error) {
	all, err := m.LoadAllProps(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StoredProp, 0)
	for _, p := range all {
		if p.Interface == interfaceName {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteInterface(_ context.Context, interfaceName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.records {
		if key.iface == interfaceName {
			delete(m.records, key)
		}
	}
	return nil
}

func (m *MemoryStore) DevicePropsWithUnset(_ context.Context) ([]OptStoredProp, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OptStoredProp, 0)
	for key, record := range m.records {
		if record.ownership != deviceOwnership {
			continue
		}
		out = append(out, OptStoredProp{
			Interface:      key.iface,
			Path:           key.path,
			Value:          record.value,
			InterfaceMajor: record.major,
			Ownership:      record.ownership,
		})
	}
	sortOptProps(out)
	return out, nil
}

func sortProps(props []StoredProp) {
	sort.Slice(props, func(i, j int) bool {
		if props[i].Interface != props[j].Interface {
			return props[i].Interface < props[j].Interface
		}
		return props[i].Path < props[j].Path
	})
}

func sortOptProps(props []OptStoredProp) {
	sort.Slice(props, func(i, j int) bool {
		if props[i].Interface != props[j].Interface {
			return props[i].Interface < props[j].Interface
		}
		return props[i].Path < props[j].Path
	})
}
