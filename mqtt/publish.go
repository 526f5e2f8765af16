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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/payload"
	"github.com/astarte-platform/astarte-device-go/types"
)

const (
	controlEmptyCacheTopic = "/control/emptyCache"
	controlPurgeTopic      = "/control/consumer/properties"
	controlQoS             = 2

	emptyCacheSentinel = "1"
)

// reliabilityToQoS maps a mapping's declared reliability to the MQTT QoS
// level it is published at: Unreliable->0, Guaranteed->1, Unique->2.
func reliabilityToQoS(r interfaces.Reliability) byte {
	switch r {
	case interfaces.GuaranteedReliability:
		return 1
	case interfaces.UniqueReliability:
		return 2
	default:
		return 0
	}
}

// dataTopic builds "<client_id>/<interface_name><path>".
func (t *Transport) dataTopic(interfaceName string, path interfaces.MappingPath) string {
	return t.clientID + "/" + strings.Trim(interfaceName, "/") + path.String()
}

func (t *Transport) publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}
	token := client.Publish(topic, qos, retained, payload)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("%w: publish to %q: %v", ErrClient, topic, err)
	}
	return nil
}

// SendIndividual implements connection.Connection.
func (t *Transport) SendIndividual(ctx context.Context, interfaceName string, path interfaces.MappingPath, v types.Value, timestamp *time.Time, reliability interfaces.Reliability) error {
	data, err := payload.SerializeIndividual(v, timestamp)
	if err != nil {
		return err
	}
	return t.publish(ctx, t.dataTopic(interfaceName, path), reliabilityToQoS(reliability), false, data)
}

// SendObject implements connection.Connection.
func (t *Transport) SendObject(ctx context.Context, interfaceName string, path interfaces.MappingPath, obj map[string]types.Value, timestamp *time.Time, reliability interfaces.Reliability) error {
	data, err := payload.SerializeObject(payload.ObjectAggregate(obj), timestamp)
	if err != nil {
		return err
	}
	return t.publish(ctx, t.dataTopic(interfaceName, path), reliabilityToQoS(reliability), false, data)
}

// Subscribe implements connection.Registry: subscribes to every path of
// interfaceName at QoS 2, per §4.J step 3.
func (t *Transport) Subscribe(ctx context.Context, interfaceName string) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}
	topic := t.clientID + "/" + strings.Trim(interfaceName, "/") + "/#"
	token := client.Subscribe(topic, controlQoS, nil)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("%w: subscribe to %q: %v", ErrClient, topic, err)
	}
	return nil
}

// Unsubscribe implements connection.Registry.
func (t *Transport) Unsubscribe(ctx context.Context, interfaceName string) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}
	topic := t.clientID + "/" + strings.Trim(interfaceName, "/") + "/#"
	token := client.Unsubscribe(topic)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("%w: unsubscribe from %q: %v", ErrClient, topic, err)
	}
	return nil
}

// SubscribePurgeProperties subscribes to this device's purge-properties
// control topic at QoS 2 (§4.J step 3).
func (t *Transport) SubscribePurgeProperties(ctx context.Context) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}
	topic := t.clientID + controlPurgeTopic
	token := client.Subscribe(topic, controlQoS, nil)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("%w: subscribe to %q: %v", ErrClient, topic, err)
	}
	return nil
}

// SendIntrospection implements connection.Registry: publishes the
// introspection string to "<client_id>" at QoS 2, not retained (§4.J step 4).
func (t *Transport) SendIntrospection(ctx context.Context, introspection string) error {
	return t.publish(ctx, t.clientID, controlQoS, false, []byte(introspection))
}

// SendEmptyCache publishes the "1" sentinel to
// "<client_id>/control/emptyCache" at QoS 2 (§4.J step 5).
func (t *Transport) SendEmptyCache(ctx context.Context) error {
	return t.publish(ctx, t.clientID+controlEmptyCacheTopic, controlQoS, false, []byte(emptyCacheSentinel))
}
