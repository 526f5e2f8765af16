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

package mqtt

import (
	"testing"

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/payload"
	"github.com/astarte-platform/astarte-device-go/types"
)

func newTestTransport(t *testing.T, ifaces fakeResolver) *Transport {
	t.Helper()
	tr, err := NewTransport(Config{Realm: "test", DeviceID: testDeviceID, Brokers: []string{"tcp://localhost:1883"}}, ifaces)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tr
}

func mustInterface(t *testing.T, document string) interfaces.Interface {
	t.Helper()
	iface, err := interfaces.ParseInterfaceFromString(document)
	if err != nil {
		t.Fatalf("unexpected error parsing interface: %v", err)
	}
	return iface
}

func TestDecodeIndividual(t *testing.T) {
	iface := mustInterface(t, `{
		"interface_name": "org.example.Sensor",
		"version_major": 1, "version_minor": 0,
		"type": "datastream", "ownership": "server",
		"mappings": [{"endpoint": "/value", "type": "double"}]
	}`)
	tr := newTestTransport(t, fakeResolver{"org.example.Sensor": iface})

	v, _ := types.Double(3.5)
	raw, err := payload.SerializeIndividual(v, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev, ok := tr.decode(ParsedTopic{Interface: "org.example.Sensor", Path: "/value"}, raw)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if ev.Data.IsObject() {
		t.Fatal("expected an individual event")
	}
	if !ev.Data.Individual.Equal(v) {
		t.Errorf("got %v, want %v", ev.Data.Individual, v)
	}
}

func TestDecodeUnknownInterfaceDropped(t *testing.T) {
	tr := newTestTransport(t, fakeResolver{})
	_, ok := tr.decode(ParsedTopic{Interface: "org.example.Nope", Path: "/value"}, []byte{})
	if ok {
		t.Error("expected decode to drop an unknown interface")
	}
}

func TestDecodeObject(t *testing.T) {
	iface := mustInterface(t, `{
		"interface_name": "org.example.Obj",
		"version_major": 1, "version_minor": 0,
		"type": "datastream", "ownership": "device",
		"aggregation": "object",
		"mappings": [
			{"endpoint": "/sensors/%{id}/value", "type": "double"},
			{"endpoint": "/sensors/%{id}/unit", "type": "string"}
		]
	}`)
	tr := newTestTransport(t, fakeResolver{"org.example.Obj": iface})

	value, _ := types.Double(1.0)
	unit, _ := types.String("C")
	raw, err := payload.SerializeObject(payload.ObjectAggregate{"value": value, "unit": unit}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev, ok := tr.decode(ParsedTopic{Interface: "org.example.Obj", Path: "/sensors/s1"}, raw)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if !ev.Data.IsObject() {
		t.Fatal("expected an object event")
	}
	if len(ev.Data.Object) != 2 {
		t.Errorf("expected 2 object fields, got %d", len(ev.Data.Object))
	}
}
