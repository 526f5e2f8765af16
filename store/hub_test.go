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
	"testing"

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/types"
)

// fakeHub is an in-memory stand-in for a remote property virtualization hub.
type fakeHub struct {
	byInterface map[string][]StoredProp
}

func newFakeHub() *fakeHub { return &fakeHub{byInterface: map[string][]StoredProp{}} }

func (h *fakeHub) LoadDeviceProp(ctx context.Context, interfaceName, path string) (types.Value, bool, error) {
	for _, p := range h.byInterface[interfaceName] {
		if p.Path == path {
			return p.Value, true, nil
		}
	}
	return types.Value{}, false, nil
}

func (h *fakeHub) DeviceProps(ctx context.Context, interfaceName string) ([]StoredProp, error) {
	return h.byInterface[interfaceName], nil
}

func TestHubStoreIgnoresDeviceOwnedWrites(t *testing.T) {
	hub := newFakeHub()
	s := NewHubStore(hub)
	ctx := context.Background()

	v, _ := types.String("should not persist locally")
	if err := s.StoreProp(ctx, StoredProp{Interface: "A", Path: "/p1", Value: v, InterfaceMajor: 1, Ownership: interfaces.DeviceOwnership}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok, err := s.LoadProp(ctx, "A", "/p1", 1); err != nil || ok {
		t.Errorf("expected device-owned write to be silently ignored, got ok=%v err=%v", ok, err)
	}
}

func TestHubStoreLoadPropDelegatesToHub(t *testing.T) {
	hub := newFakeHub()
	v, _ := types.Integer(7)
	hub.byInterface["A"] = []StoredProp{{Interface: "A", Path: "/p1", Value: v, InterfaceMajor: 1, Ownership: interfaces.DeviceOwnership}}
	s := NewHubStore(hub)

	got, ok, err := s.LoadProp(context.Background(), "A", "/p1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !got.Equal(v) {
		t.Errorf("expected hub-backed value, got %v ok=%v", got, ok)
	}
}

func TestHubStoreServerOwnedWritesUseFallback(t *testing.T) {
	hub := newFakeHub()
	s := NewHubStore(hub)
	ctx := context.Background()

	v, _ := types.Boolean(true)
	if err := s.StoreProp(ctx, StoredProp{Interface: "B", Path: "/p2", Value: v, InterfaceMajor: 1, Ownership: interfaces.ServerOwnership}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := s.LoadProp(ctx, "B", "/p2", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !got.Equal(v) {
		t.Errorf("expected fallback-backed value, got %v ok=%v", got, ok)
	}
}

func TestHubStoreInterfacePropsMergesHubAndFallback(t *testing.T) {
	hub := newFakeHub()
	hubVal, _ := types.Integer(1)
	hub.byInterface["A"] = []StoredProp{{Interface: "A", Path: "/hub", Value: hubVal, InterfaceMajor: 1, Ownership: interfaces.DeviceOwnership}}
	s := NewHubStore(hub)
	ctx := context.Background()

	serverVal, _ := types.String("server")
	if err := s.StoreProp(ctx, StoredProp{Interface: "A", Path: "/server", Value: serverVal, InterfaceMajor: 1, Ownership: interfaces.ServerOwnership}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	props, err := s.InterfaceProps(ctx, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(props) != 2 {
		t.Fatalf("expected 2 properties (1 hub + 1 fallback), got %d", len(props))
	}
}
