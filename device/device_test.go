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
	"testing"
)

const testPropDoc = `{
	"interface_name": "org.example.Prop",
	"version_major": 1,
	"version_minor": 0,
	"type": "properties",
	"ownership": "device",
	"mappings": [
		{"endpoint": "/value", "type": "integer", "allow_unset": true}
	]
}`

const testUnsettableFalseDoc = `{
	"interface_name": "org.example.StrictProp",
	"version_major": 1,
	"version_minor": 0,
	"type": "properties",
	"ownership": "device",
	"mappings": [
		{"endpoint": "/value", "type": "integer"}
	]
}`

const testSensorDoc = `{
	"interface_name": "org.example.Sensor",
	"version_major": 1,
	"version_minor": 0,
	"type": "datastream",
	"ownership": "server",
	"mappings": [
		{"endpoint": "/value", "type": "double"}
	]
}`

const testObjDoc = `{
	"interface_name": "org.example.Obj",
	"version_major": 1,
	"version_minor": 0,
	"type": "datastream",
	"ownership": "device",
	"aggregation": "object",
	"mappings": [
		{"endpoint": "/sensors/%{sensor_id}/value", "type": "double"},
		{"endpoint": "/sensors/%{sensor_id}/unit", "type": "string"}
	]
}`

func TestNewRejectsNilLink(t *testing.T) {
	if _, err := New(nil, newFakeLink()); err == nil {
		t.Error("expected error for nil Connection")
	}
	link := newFakeLink()
	if _, err := New(link, nil); err == nil {
		t.Error("expected error for nil Registry")
	}
}

func TestAddAndRemoveInterface(t *testing.T) {
	link := newFakeLink()
	d, err := New(link, link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := d.AddInterface([]byte(testPropDoc)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.Catalog().Get("org.example.Prop"); !ok {
		t.Fatal("expected interface to be installed")
	}

	if err := d.RemoveInterface(context.Background(), "org.example.Prop"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.Catalog().Get("org.example.Prop"); ok {
		t.Error("expected interface to be removed")
	}
}
