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

package interfaces

import "testing"

const individualDatastream = `{
	"interface_name": "org.astarte.Test",
	"version_major": 1,
	"version_minor": 0,
	"type": "datastream",
	"ownership": "device",
	"mappings": [
		{"endpoint": "/%{sensor_id}/value", "type": "double"}
	]
}`

const objectDatastream = `{
	"interface_name": "org.astarte.TestObject",
	"version_major": 1,
	"version_minor": 0,
	"type": "datastream",
	"ownership": "device",
	"aggregation": "object",
	"mappings": [
		{"endpoint": "/values/a", "type": "double"},
		{"endpoint": "/values/b", "type": "integer"}
	]
}`

func TestParseInterfaceAppliesDefaults(t *testing.T) {
	iface, err := ParseInterfaceFromString(individualDatastream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iface.Mappings[0].Reliability != UnreliableReliability {
		t.Errorf("expected default reliability, got %q", iface.Mappings[0].Reliability)
	}
	if iface.Mappings[0].Retention != DiscardRetention {
		t.Errorf("expected default retention, got %q", iface.Mappings[0].Retention)
	}
}

func TestParseInterfaceRejectsZeroVersion(t *testing.T) {
	doc := `{"interface_name":"org.astarte.Z","version_major":0,"version_minor":0,"type":"datastream","ownership":"device","mappings":[{"endpoint":"/a","type":"double"}]}`
	if _, err := ParseInterfaceFromString(doc); err == nil {
		t.Error("expected error for 0.0 version")
	}
}

func TestParseInterfaceRejectsEmptyMappings(t *testing.T) {
	doc := `{"interface_name":"org.astarte.E","version_major":1,"version_minor":0,"type":"datastream","ownership":"device","mappings":[]}`
	if _, err := ParseInterfaceFromString(doc); err == nil {
		t.Error("expected error for empty mappings")
	}
}

func TestParseInterfacePropertiesMustBeIndividual(t *testing.T) {
	doc := `{"interface_name":"org.astarte.P","version_major":1,"version_minor":0,"type":"properties","ownership":"device","aggregation":"object","mappings":[{"endpoint":"/a","type":"double"},{"endpoint":"/b","type":"double"}]}`
	if _, err := ParseInterfaceFromString(doc); err == nil {
		t.Error("expected error for object-aggregated properties interface")
	}
}

func TestParseInterfaceObjectMappingsMustShareParent(t *testing.T) {
	doc := `{"interface_name":"org.astarte.O","version_major":1,"version_minor":0,"type":"datastream","ownership":"device","aggregation":"object","mappings":[{"endpoint":"/values/a","type":"double"},{"endpoint":"/other/b","type":"double"}]}`
	if _, err := ParseInterfaceFromString(doc); err == nil {
		t.Error("expected error for mismatched object mapping prefixes")
	}
}

func TestAsMappingRefResolvesParametricEndpoint(t *testing.T) {
	iface, err := ParseInterfaceFromString(individualDatastream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := ParseMappingPath("/room1/value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := iface.AsMappingRef(path)
	if !ok {
		t.Fatal("expected a matching mapping")
	}
	if m.Type != Double {
		t.Errorf("expected double, got %q", m.Type)
	}
}

func TestObjectPathPrefixAndTailLookup(t *testing.T) {
	iface, err := ParseInterfaceFromString(objectDatastream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iface.ObjectPathPrefix() != "/values" {
		t.Errorf("expected /values, got %q", iface.ObjectPathPrefix())
	}
	m, ok := iface.ObjectMappingByTail("a")
	if !ok || m.Type != Double {
		t.Errorf("expected to resolve tail 'a' to a double mapping, got %+v ok=%v", m, ok)
	}
}

func TestValidateVersionChange(t *testing.T) {
	prev, _ := ParseInterfaceFromString(individualDatastream)
	next := prev
	next.MinorVersion = 1
	if err := ValidateVersionChange(prev, next); err != nil {
		t.Errorf("minor bump should be allowed: %v", err)
	}

	regressed := prev
	regressed.MinorVersion = 0
	regressed.MajorVersion = 0
	if err := ValidateVersionChange(prev, regressed); err == nil {
		t.Error("expected error on version regression")
	}

	renamed := prev
	renamed.Name = "org.astarte.Other"
	if err := ValidateVersionChange(prev, renamed); err == nil {
		t.Error("expected error on name mismatch")
	}
}
