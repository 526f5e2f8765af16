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
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/astarte-platform/astarte-device-go/auth"
	"github.com/astarte-platform/astarte-device-go/connection"
	"github.com/astarte-platform/astarte-device-go/interfaces"
)

// Resolver is the read-only interface lookup a Transport needs to decode an
// incoming publish; publish QoS comes from the caller's reliability
// argument, not from this lookup. *interfaces.Catalog satisfies this
// directly.
type Resolver interface {
	Get(name string) (interfaces.Interface, bool)
}

// Transport is the concrete MQTT implementation of connection.Connection
// and connection.Registry (component H), wrapping a paho.mqtt.golang
// client and owning the reconnect/poll state machine of §4.H.
type Transport struct {
	cfg      Config
	clientID string
	resolver Resolver
	log      *logrus.Entry

	eventBuffer   int
	customizePaho []func(*paho.ClientOptions)

	mu     sync.Mutex
	client paho.Client
	state  *stateMachine
	backoff *delayedPoll

	events chan connection.ReceivedEvent
}

func (t *Transport) init() {
	t.events = make(chan connection.ReceivedEvent, t.eventBuffer)
	t.state = newStateMachine(func(from, to connState) {
		t.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("connection state transition")
	})
	t.backoff = newDelayedPoll()
}

// ClientID returns "<realm>/<device_id>", the prefix of every device-scoped
// topic.
func (t *Transport) ClientID() string { return t.clientID }

// State returns the transport's current connection state, primarily for
// tests and diagnostics.
func (t *Transport) State() string { return t.state.current().String() }

func (t *Transport) buildPahoOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	for _, broker := range t.cfg.Brokers {
		opts.AddBroker(broker)
	}
	opts.SetClientID(t.clientID)
	opts.SetCleanSession(false)
	opts.SetAutoReconnect(false) // Connect's own retry loop drives reconnection
	opts.SetOrderMatters(true)
	if t.cfg.TLSConfig != nil {
		opts.SetTLSConfig(t.cfg.TLSConfig)
	}
	if t.cfg.KeepAlive > 0 {
		opts.SetKeepAlive(t.cfg.KeepAlive)
	}
	opts.SetDefaultPublishHandler(t.onMessage)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		t.log.WithError(err).Warn("mqtt connection lost")
		t.state.transition(Disconnected)
	})

	for _, fn := range t.customizePaho {
		fn(opts)
	}
	return opts
}

// Connect establishes the MQTT session, retrying transport failures with
// exponential backoff (base 500ms, cap 30s) until ctx is cancelled or a
// fatal credential error occurs. It returns sessionPresent as reported by
// the broker's CONNACK: true means the caller must NOT run the reconnect
// handshake (§4.J), false means it must.
func (t *Transport) Connect(ctx context.Context) (bool, error) {
	t.mu.Lock()
	if t.client == nil {
		t.client = paho.NewClient(t.buildPahoOptions())
	}
	client := t.client
	t.mu.Unlock()

	t.state.transition(Connecting)

	for {
		token := client.Connect()
		if err := waitToken(ctx, token); err != nil {
			if ctx.Err() != nil {
				return false, fmt.Errorf("%w: %w", ErrConnectTimeout, ctx.Err())
			}
			if credErr := classifyConnectError(token, err); auth.IsCredentialError(credErr) {
				t.state.transition(Disconnected)
				return false, credErr
			}
			t.log.WithError(err).Warn("mqtt connect failed, retrying")
			if waitErr := t.backoff.wait(ctx); waitErr != nil {
				return false, waitErr
			}
			continue
		}

		t.backoff.reset()
		sessionPresent := sessionPresentOf(token)
		if sessionPresent {
			t.state.transition(Running)
		} else {
			t.state.transition(SessionEstablished)
		}
		return sessionPresent, nil
	}
}

// MarkRunning transitions the transport to Running after the caller (the
// device runtime) has completed the reconnect handshake of §4.J.
func (t *Transport) MarkRunning() { t.state.transition(Running) }

// Close disconnects the underlying client and stops accepting new events.
func (t *Transport) Close(_ context.Context) error {
	t.state.transition(Draining)
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
	t.state.transition(Disconnected)
	return nil
}

// NextEvent blocks until a decoded event is available or ctx is cancelled.
// Close does not close the event channel, so it does not unblock a waiting
// NextEvent.
func (t *Transport) NextEvent(ctx context.Context) (connection.ReceivedEvent, error) {
	select {
	case ev, ok := <-t.events:
		if !ok {
			return connection.ReceivedEvent{}, fmt.Errorf("mqtt: %w: event channel closed", ErrNotConnected)
		}
		return ev, nil
	case <-ctx.Done():
		return connection.ReceivedEvent{}, ctx.Err()
	}
}

func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sessionPresentOf extracts the CONNACK session_present flag. paho's
// Connect() token implements an extra SessionPresent() accessor beyond the
// plain Token interface.
func sessionPresentOf(token paho.Token) bool {
	type sessionPresenter interface {
		SessionPresent() bool
	}
	if sp, ok := token.(sessionPresenter); ok {
		return sp.SessionPresent()
	}
	return false
}

// classifyConnectError maps a CONNACK return code to the auth package's
// fatal credential-error sentinels, so the caller can distinguish "retry
// forever" from "this credential will never work."
func classifyConnectError(token paho.Token, err error) error {
	type returnCoder interface {
		ReturnCode() byte
	}
	rc, ok := token.(returnCoder)
	if !ok {
		return err
	}
	switch rc.ReturnCode() {
	case 4, 5: // bad username/password, not authorized
		return fmt.Errorf("%w: %v", auth.ErrInvalidCredential, err)
	default:
		return err
	}
}
