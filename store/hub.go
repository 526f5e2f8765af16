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

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/types"
)

// Hub is the narrow contract a device-owned property virtualization layer
// (a local message hub fronting several devices) must satisfy. It is
// consulted instead of a PropertyStore when a device's properties are
// actually owned and persisted by the hub process rather than this
// runtime. No concrete wire transport to a hub is implemented here: the
// transport (gRPC or otherwise) is external to this package.
type Hub interface {
	LoadDeviceProp(ctx context.Context, interfaceName, path string) (types.Value, bool, error)
	DeviceProps(ctx context.Context, interfaceName string) ([]StoredProp, error)
}

// HubStore adapts a Hub to the PropertyStore interface for the subset of
// operations a device runtime needs when it virtualizes its device-owned
// properties through a hub: LoadProp and InterfaceProps consult the hub
// first (plus an in-memory fallback), device-owned StoreProp calls are
// ignored, and every other operation, including LoadAllProps, DeviceProps,
// ServerProps and DevicePropsWithUnset, uses only the in-memory fallback,
// so a runtime built against PropertyStore keeps working unmodified.
type HubStore struct {
	hub      Hub
	fallback *MemoryStore
}

// NewHubStore wraps hub, using an internal MemoryStore for server-owned
// properties and any writes the hub itself does not serve.
func NewHubStore(hub Hub) *HubStore {
	return &HubStore{hub: hub, fallback: NewMemoryStore()}
}

// StoreProp silently ignores device-owned writes: the hub is authoritative
// for those and is never written to from here (§4.F). Server-owned writes
// have no hub equivalent and fall back to the in-memory buffer.
func (h *HubStore) StoreProp(ctx context.Context, prop StoredProp) error {
	if prop.Ownership == interfaces.DeviceOwnership {
		return nil
	}
	return h.fallback.StoreProp(ctx, prop)
}

func (h *HubStore) LoadProp(ctx context.Context, interfaceName, path string, interfaceMajor int) (types.Value, bool, error) {
	if v, ok, err := h.hub.LoadDeviceProp(ctx, interfaceName, path); err != nil {
		return types.Value{}, false, err
	} else if ok {
		return v, true, nil
	}
	return h.fallback.LoadProp(ctx, interfaceName, path, interfaceMajor)
}

func (h *HubStore) UnsetProp(ctx context.Context, interfaceName, path string) error {
	return h.fallback.UnsetProp(ctx, interfaceName, path)
}

func (h *HubStore) DeleteProp(ctx context.Context, interfaceName, path string) error {
	return h.fallback.DeleteProp(ctx, interfaceName, path)
}

func (h *HubStore) Clear(ctx context.Context) error {
	return h.fallback.Clear(ctx)
}

func (h *HubStore) LoadAllProps(ctx context.Context) ([]StoredProp, error) {
	return h.fallback.LoadAllProps(ctx)
}

func (h *HubStore) DeviceProps(ctx context.Context) ([]StoredProp, error) {
	return h.fallback.DeviceProps(ctx)
}

func (h *HubStore) ServerProps(ctx context.Context) ([]StoredProp, error) {
	return h.fallback.ServerProps(ctx)
}

func (h *HubStore) InterfaceProps(ctx context.Context, interfaceName string) ([]StoredProp, error) {
	hubProps, err := h.hub.DeviceProps(ctx, interfaceName)
	if err != nil {
		return nil, err
	}
	fallbackProps, err := h.fallback.InterfaceProps(ctx, interfaceName)
	if err != nil {
		return nil, err
	}
	return append(hubProps, fallbackProps...), nil
}

func (h *HubStore) DeleteInterface(ctx context.Context, interfaceName string) error {
	return h.fallback.DeleteInterface(ctx, interfaceName)
}

func (h *HubStore) DevicePropsWithUnset(ctx context.Context) ([]OptStoredProp, error) {
	return h.fallback.DevicePropsWithUnset(ctx)
}
