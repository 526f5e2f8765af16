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
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"testing"

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/types"
)

// testPropertyStore exercises the PropertyStore contract against any
// implementation, mirroring the original SDK's shared store test suite.
func testPropertyStore(t *testing.T, s PropertyStore) {
	t.Helper()
	ctx := context.Background()

	v1, _ := types.Integer(1)
	if err := s.StoreProp(ctx, StoredProp{Interface: "A", Path: "/p1", Value: v1, InterfaceMajor: 1, Ownership: interfaces.DeviceOwnership}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := s.LoadProp(ctx, "A", "/p1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !got.Equal(v1) {
		t.Errorf("expected to load stored value, got %v ok=%v", got, ok)
	}

	if _, ok, err := s.LoadProp(ctx, "A", "/p1", 2); err != nil || ok {
		t.Errorf("expected major version mismatch to return ok=false, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.LoadProp(ctx, "A", "/p1", 1); ok {
		t.Error("expected version-mismatched property to have been deleted")
	}

	v2, _ := types.String("hello")
	_ = s.StoreProp(ctx, StoredProp{Interface: "A", Path: "/p2", Value: v2, InterfaceMajor: 1, Ownership: interfaces.DeviceOwnership})
	if err := s.UnsetProp(ctx, "A", "/p2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := s.LoadProp(ctx, "A", "/p2", 1); ok {
		t.Error("expected unset property to be unreadable via LoadProp")
	}

	optProps, err := s.DevicePropsWithUnset(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	foundTombstone := false
	for _, p := range optProps {
		if p.Interface == "A" && p.Path == "/p2" && p.Value == nil {
			foundTombstone = true
		}
	}
	if !foundTombstone {
		t.Error("expected an unset tombstone to survive in DevicePropsWithUnset")
	}

	if err := s.DeleteProp(ctx, "A", "/p2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	optProps, _ = s.DevicePropsWithUnset(ctx)
	for _, p := range optProps {
		if p.Interface == "A" && p.Path == "/p2" {
			t.Error("expected deleted property to be gone entirely")
		}
	}
}

func TestMemoryStoreSatisfiesContract(t *testing.T) {
	testPropertyStore(t, NewMemoryStore())
}

func TestPurgePropertiesDeletesUnlisted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v1, _ := types.Integer(1)
	v2, _ := types.Integer(2)
	v3, _ := types.Integer(3)
	_ = s.StoreProp(ctx, StoredProp{Interface: "A", Path: "/p1", Value: v1, InterfaceMajor: 1, Ownership: interfaces.DeviceOwnership})
	_ = s.StoreProp(ctx, StoredProp{Interface: "A", Path: "/p2", Value: v2, InterfaceMajor: 1, Ownership: interfaces.DeviceOwnership})
	_ = s.StoreProp(ctx, StoredProp{Interface: "B", Path: "/p3", Value: v3, InterfaceMajor: 1, Ownership: interfaces.DeviceOwnership})

	kept := map[string]struct{}{"A/p1": {}, "B/p3": {}}
	if err := PurgeProperties(ctx, s, kept); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remaining, err := s.DeviceProps(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining properties, got %d: %+v", len(remaining), remaining)
	}
}

func TestDecodePurgePayloadRejectsShortPayload(t *testing.T) {
	if _, err := DecodePurgePayload([]byte{1, 2}); err != ErrPayloadTooShort {
		t.Errorf("expected ErrPayloadTooShort, got %v", err)
	}
}

func TestDecodePurgePayloadRejectsBadZlib(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0xff, 0xff, 0xff}
	if _, err := DecodePurgePayload(payload); err == nil {
		t.Error("expected decompression error")
	}
}

func TestDecodePurgePayloadRoundTrip(t *testing.T) {
	listing := "A/p1;B/p3"
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	if _, err := w.Write([]byte(listing)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := make([]byte, 4+compressed.Len())
	binary.LittleEndian.PutUint32(payload[:4], uint32(len(listing)))
	copy(payload[4:], compressed.Bytes())

	got, err := DecodePurgePayload(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got["A/p1"]; !ok {
		t.Error("expected A/p1 in the decoded set")
	}
	if _, ok := got["B/p3"]; !ok {
		t.Error("expected B/p3 in the decoded set")
	}
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got))
	}
}
