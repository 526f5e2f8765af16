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

// Package store implements durable and in-memory storage for Astarte
// property values, and the purge-properties reconciliation that runs on
// every MQTT reconnect.
package store

import (
	"context"
	"errors"

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/types"
)

// ErrVersionMismatch names the condition of a stored property whose major
// version no longer matches the installed interface. No store method
// returns it: LoadProp resolves a mismatch by deleting the stale row and
// reporting ok=false.
var ErrVersionMismatch = errors.New("store: stored property major version mismatch")

// StoredProp is one property row: an interface+path key, its value, the
// major version of the interface it was stored under, and its ownership.
type StoredProp struct {
	Interface      string
	Path           string
	Value          types.Value
	InterfaceMajor int
	Ownership      interfaces.Ownership
}

// OptStoredProp is a StoredProp whose Value may be absent: a property that
// was Unset by the device but not yet deleted, because the unset has not
// been acknowledged as delivered yet.
type OptStoredProp struct {
	Interface      string
	Path           string
	Value          *types.Value
	InterfaceMajor int
	Ownership      interfaces.Ownership
}

// PropertyStore is the persistence contract a device runtime uses for
// property mappings. Implementations must be safe for concurrent use.
type PropertyStore interface {
	StoreProp(ctx context.Context, prop StoredProp) error
	LoadProp(ctx context.Context, interfaceName, path string, interfaceMajor int) (types.Value, bool, error)
	UnsetProp(ctx context.Context, interfaceName, path string) error
	DeleteProp(ctx context.Context, interfaceName, path string) error
	Clear(ctx context.Context) error
	LoadAllProps(ctx context.Context) ([]StoredProp, error)
	DeviceProps(ctx context.Context) ([]StoredProp, error)
	ServerProps(ctx context.Context) ([]StoredProp, error)
	InterfaceProps(ctx context.Context, interfaceName string) ([]StoredProp, error)
	DeleteInterface(ctx context.Context, interfaceName string) error
	DevicePropsWithUnset(ctx context.Context) ([]OptStoredProp, error)
}
