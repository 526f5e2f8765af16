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
	"errors"
	"sync"
	"time"

	"github.com/astarte-platform/astarte-device-go/connection"
	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/types"
)

var errFakeLinkClosed = errors.New("device: fake link closed")

// sentIndividual records one SendIndividual call, for test assertions.
type sentIndividual struct {
	Interface string
	Path      string
	Value     types.Value
}

// fakeLink is an in-process stand-in for an mqtt.Transport implementing
// both connection.Connection and connection.Registry, so device tests never
// need a broker.
type fakeLink struct {
	mu sync.Mutex

	sessionPresent bool
	connectErr     error
	running        bool

	sent        []sentIndividual
	sentObjects []map[string]types.Value
	sendErr     error

	subscribed      []string
	purgeSubscribed bool
	introspection   string
	emptyCacheSent  bool
	registryErr     error

	events chan connection.ReceivedEvent
	closed bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{events: make(chan connection.ReceivedEvent, 16)}
}

func (f *fakeLink) Connect(ctx context.Context) (bool, error) {
	if f.connectErr != nil {
		return false, f.connectErr
	}
	return f.sessionPresent, nil
}

func (f *fakeLink) MarkRunning() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
}

func (f *fakeLink) NextEvent(ctx context.Context) (connection.ReceivedEvent, error) {
	select {
	case ev, ok := <-f.events:
		if !ok {
			return connection.ReceivedEvent{}, errFakeLinkClosed
		}
		return ev, nil
	case <-ctx.Done():
		return connection.ReceivedEvent{}, ctx.Err()
	}
}

func (f *fakeLink) SendIndividual(ctx context.Context, interfaceName string, path interfaces.MappingPath, v types.Value, timestamp *time.Time, reliability interfaces.Reliability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentIndividual{Interface: interfaceName, Path: path.String(), Value: v})
	return nil
}

func (f *fakeLink) SendObject(ctx context.Context, interfaceName string, path interfaces.MappingPath, obj map[string]types.Value, timestamp *time.Time, reliability interfaces.Reliability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentObjects = append(f.sentObjects, obj)
	return nil
}

func (f *fakeLink) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeLink) Subscribe(ctx context.Context, interfaceName string) error {
	if f.registryErr != nil {
		return f.registryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, interfaceName)
	return nil
}

func (f *fakeLink) Unsubscribe(ctx context.Context, interfaceName string) error { return nil }

func (f *fakeLink) SubscribePurgeProperties(ctx context.Context) error {
	if f.registryErr != nil {
		return f.registryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeSubscribed = true
	return nil
}

func (f *fakeLink) SendIntrospection(ctx context.Context, introspection string) error {
	if f.registryErr != nil {
		return f.registryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.introspection = introspection
	return nil
}

func (f *fakeLink) SendEmptyCache(ctx context.Context) error {
	if f.registryErr != nil {
		return f.registryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emptyCacheSent = true
	return nil
}
