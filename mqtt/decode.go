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
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/astarte-platform/astarte-device-go/connection"
	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/payload"
	"github.com/astarte-platform/astarte-device-go/types"
)

// onMessage is the paho default publish handler: every inbound message,
// regardless of which subscription matched it, lands here. It classifies
// the topic (purge vs. ordinary interface/path), resolves and decodes
// ordinary publishes via the injected Resolver, and enqueues the result for
// NextEvent. Decode failures are logged and dropped — the purge-before-
// lookup ordering and the warn-and-drop-on-unknown-interface rule of §4.I
// step 3 both live here, since this handler is this transport's only
// producer of ReceivedEvent.
func (t *Transport) onMessage(_ paho.Client, msg paho.Message) {
	parsed, err := ParseTopic(t.clientID, msg.Topic())
	if err != nil {
		t.log.WithError(err).WithField("topic", msg.Topic()).Warn("dropping publish on unparseable topic")
		return
	}

	if parsed.Purge {
		t.enqueue(connection.ReceivedEvent{PurgeProperties: msg.Payload()})
		return
	}

	event, ok := t.decode(parsed, msg.Payload())
	if !ok {
		return
	}
	t.enqueue(connection.ReceivedEvent{Data: &event})
}

func (t *Transport) enqueue(ev connection.ReceivedEvent) {
	select {
	case t.events <- ev:
	default:
		t.log.Warn("event channel full, dropping oldest event")
		select {
		case <-t.events:
		default:
		}
		t.events <- ev
	}
}

// decode resolves parsed.Interface against the Resolver and deserializes
// payload accordingly. ok=false means the publish was dropped (unknown
// interface, unknown mapping, or a codec error) and has already been
// logged; the caller must not enqueue anything in that case.
func (t *Transport) decode(parsed ParsedTopic, raw []byte) (connection.DataEvent, bool) {
	iface, ok := t.resolver.Get(parsed.Interface)
	if !ok {
		t.log.WithField("interface", parsed.Interface).Warn("dropping publish for unknown interface")
		return connection.DataEvent{}, false
	}

	if iface.Aggregation == interfaces.ObjectAggregation {
		return t.decodeObject(iface, parsed, raw)
	}
	return t.decodeIndividual(iface, parsed, raw)
}

func (t *Transport) decodeIndividual(iface interfaces.Interface, parsed ParsedTopic, raw []byte) (connection.DataEvent, bool) {
	path, err := interfaces.ParseMappingPath(parsed.Path)
	if err != nil {
		t.log.WithError(err).WithField("path", parsed.Path).Warn("dropping publish with invalid path")
		return connection.DataEvent{}, false
	}
	mapping, ok := iface.AsMappingRef(path)
	if !ok {
		t.log.WithFields(logrus.Fields{"interface": parsed.Interface, "path": parsed.Path}).Warn("dropping publish with no matching mapping")
		return connection.DataEvent{}, false
	}

	v, _, err := payload.DeserializeIndividual(raw, types.Kind(mapping.Type), mapping.ExplicitTimestamp, mapping.AllowUnset)
	if err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{"interface": parsed.Interface, "path": parsed.Path}).Warn("dropping publish that failed to decode")
		return connection.DataEvent{}, false
	}

	return connection.DataEvent{
		Interface: parsed.Interface,
		Path:      parsed.Path,
		Data:      connection.Aggregation{Individual: &v},
	}, true
}

func (t *Transport) decodeObject(iface interfaces.Interface, parsed ParsedTopic, raw []byte) (connection.DataEvent, bool) {
	expectTimestamp := len(iface.Mappings) > 0 && iface.Mappings[0].ExplicitTimestamp
	resolve := func(tail string) (types.Kind, bool) {
		m, ok := iface.ObjectMappingByTail(tail)
		if !ok {
			return "", false
		}
		return types.Kind(m.Type), true
	}

	obj, _, err := payload.DeserializeObject(raw, resolve, expectTimestamp)
	if err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{"interface": parsed.Interface, "path": parsed.Path}).Warn("dropping object publish that failed to decode")
		return connection.DataEvent{}, false
	}
	if len(obj) != len(iface.Mappings) {
		// Partial object match: some declared mapping tails are absent from
		// the payload. Rejected rather than filled with defaults, per the
		// spec's resolution of this case.
		t.log.WithFields(logrus.Fields{"interface": parsed.Interface, "path": parsed.Path}).Warn("dropping object publish with a partial key match")
		return connection.DataEvent{}, false
	}

	return connection.DataEvent{
		Interface: parsed.Interface,
		Path:      parsed.Path,
		Data:      connection.Aggregation{Object: obj},
	}, true
}
