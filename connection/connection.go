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

// Package connection defines the transport-agnostic contract the device
// runtime drives: connect, poll for the next event, dispatch a decoded
// payload, and publish. The mqtt package is the one concrete Connection
// implementation this module ships.
package connection

import (
	"context"
	"time"

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/types"
)

// Aggregation is the payload shape of a received event: either a single
// typed value (from a datastream or property mapping) or an object
// aggregate keyed by endpoint tail (datastream only).
type Aggregation struct {
	Individual *types.Value
	Object     map[string]types.Value
}

// IsObject reports whether this Aggregation carries an object payload.
func (a Aggregation) IsObject() bool { return a.Object != nil }

// DataEvent is a fully decoded, ready-to-dispatch device event.
type DataEvent struct {
	Interface string
	Path      string
	Data      Aggregation
}

// ReceivedEvent is what a Connection's NextEvent can produce: either a purge-properties directive or a decoded DataEvent.
type ReceivedEvent struct {
	PurgeProperties []byte
	Data            *DataEvent
}

// IsPurge reports whether this event is a purge-properties directive.
func (r ReceivedEvent) IsPurge() bool { return r.PurgeProperties != nil }

// Connection is the transport contract the device runtime drives. An
// implementation owns exactly one network session (e.g. one MQTT client).
type Connection interface {
	// Connect establishes the session and reports whether it resumed a
	// prior one (sessionPresent=true). The device runtime runs the
	// reconnect handshake of §4.J iff sessionPresent is false.
	Connect(ctx context.Context) (sessionPresent bool, err error)
	NextEvent(ctx context.Context) (ReceivedEvent, error)
	SendIndividual(ctx context.Context, interfaceName string, path interfaces.MappingPath, v types.Value, timestamp *time.Time, reliability interfaces.Reliability) error
	SendObject(ctx context.Context, interfaceName string, path interfaces.MappingPath, obj map[string]types.Value, timestamp *time.Time, reliability interfaces.Reliability) error
	Close(ctx context.Context) error
}

// Registry is the control-plane half of a Connection: subscribing to
// server-owned interfaces and publishing introspection. Implemented
// separately from Connection so a runtime can swap in a different
// registry without touching the data-plane send/receive path.
type Registry interface {
	Subscribe(ctx context.Context, interfaceName string) error
	Unsubscribe(ctx context.Context, interfaceName string) error
	SubscribePurgeProperties(ctx context.Context) error
	SendIntrospection(ctx context.Context, introspection string) error
	SendEmptyCache(ctx context.Context) error
}
