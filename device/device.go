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

// Package device implements the device runtime (component I): the send and
// receive pipelines and the reconnect handshake that sit between an
// interface catalog, a property store, and a connection.Connection.
package device

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/astarte-platform/astarte-device-go/connection"
	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/store"
)

// Event is one item delivered on the channel Events returns: either a
// decoded DataEvent, or a non-nil Err describing a failure encountered while
// receiving (§4.I step 3/4: decode and store failures are reported rather
// than silently dropped once they reach the device layer).
type Event struct {
	Data connection.DataEvent
	Err  error
}

// Device is the runtime that drives a connection.Connection/Registry pair
// against an interface catalog and a property store. It has no knowledge of
// MQTT or any other transport; mqtt.Transport satisfies both interfaces it
// depends on.
type Device struct {
	catalog *interfaces.Catalog
	store   store.PropertyStore
	conn    connection.Connection
	reg     connection.Registry
	log     *logrus.Entry

	events chan Event

	closeOnce sync.Once
	done      chan struct{}
}

// Option customizes a Device at construction time.
type Option = func(d *Device) error

// WithCatalog installs a pre-populated catalog instead of an empty one.
func WithCatalog(c *interfaces.Catalog) Option {
	return func(d *Device) error {
		d.catalog = c
		return nil
	}
}

// WithStore overrides the default in-memory property store.
func WithStore(s store.PropertyStore) Option {
	return func(d *Device) error {
		d.store = s
		return nil
	}
}

// WithLogger overrides the default package logger.
func WithLogger(log *logrus.Entry) Option {
	return func(d *Device) error {
		d.log = log
		return nil
	}
}

// WithEventBuffer sets the capacity of the channel Events reads from. The
// default is 64.
func WithEventBuffer(n int) Option {
	return func(d *Device) error {
		if n > 0 {
			d.events = make(chan Event, n)
		}
		return nil
	}
}

// New builds a Device wired to conn/reg, following the teacher's
// validate-then-setDefaults functional-options constructor shape.
func New(conn connection.Connection, reg connection.Registry, opts ...Option) (*Device, error) {
	if err := validate(conn, reg); err != nil {
		return nil, err
	}

	d := &Device{
		catalog: interfaces.NewCatalog(),
		store:   store.NewMemoryStore(),
		conn:    conn,
		reg:     reg,
		log:     logrus.NewEntry(logrus.StandardLogger()).WithField("component", "device"),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}

	for _, o := range opts {
		if err := o(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func validate(conn connection.Connection, reg connection.Registry) error {
	if conn == nil || reg == nil {
		return wrapErr(KindValidation, "", "", ErrClosed)
	}
	return nil
}

// Catalog returns the device's interface catalog, for installing/removing
// interfaces and for inspection.
func (d *Device) Catalog() *interfaces.Catalog { return d.catalog }

// Store returns the device's property store.
func (d *Device) Store() store.PropertyStore { return d.store }

// AddInterface parses and installs an interface document.
func (d *Device) AddInterface(document []byte) error {
	iface, err := interfaces.ParseInterface(document)
	if err != nil {
		return wrapErr(KindValidation, "", "", err)
	}
	if err := d.catalog.Add(iface); err != nil {
		return wrapErr(KindValidation, iface.Name, "", err)
	}
	return nil
}

// RemoveInterface uninstalls an interface and deletes any properties stored
// under it.
func (d *Device) RemoveInterface(ctx context.Context, name string) error {
	d.catalog.Remove(name)
	if err := d.store.DeleteInterface(ctx, name); err != nil {
		return wrapErr(KindStore, name, "", err)
	}
	return nil
}

// Events returns the channel HandleEvents delivers decoded events and
// receive-side failures on. The channel is never closed; after Close,
// HandleEvents stops delivering on it.
func (d *Device) Events() <-chan Event { return d.events }

// Close stops HandleEvents and closes the underlying connection. Safe to
// call more than once.
func (d *Device) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	if err := d.conn.Close(ctx); err != nil {
		return wrapErr(KindTransport, "", "", err)
	}
	return nil
}
