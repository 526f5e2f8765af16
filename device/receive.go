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

	"github.com/astarte-platform/astarte-device-go/connection"
	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/store"
)

// HandleEvents runs the receive loop (§4.I receive pipeline) until ctx is
// cancelled or the Device is closed: it pulls the next event from the
// connection, reconciles the property store on a purge directive, persists
// property writes, and delivers every data event (or receive-side failure)
// on the channel Events returns. A purge directive that is applied without
// error delivers nothing. It never blocks Send/SendObject, which talk to
// the connection directly.
func (d *Device) HandleEvents(ctx context.Context) {
	for {
		ev, err := d.conn.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !d.emit(Event{Err: wrapErr(KindTransport, "", "", err)}) {
				return
			}
			continue
		}

		if ev.IsPurge() {
			if err := d.handlePurge(ctx, ev.PurgeProperties); err != nil {
				if !d.emit(Event{Err: err}) {
					return
				}
			}
			continue
		}

		if ev.Data == nil {
			continue
		}

		storeErr := d.storeReceived(ctx, *ev.Data)
		if !d.emit(Event{Data: *ev.Data, Err: storeErr}) {
			return
		}
	}
}

func (d *Device) handlePurge(ctx context.Context, payload []byte) error {
	kept, err := store.DecodePurgePayload(payload)
	if err != nil {
		return wrapErr(KindPurge, "", "", err)
	}
	if err := store.PurgeProperties(ctx, d.store, kept); err != nil {
		return wrapErr(KindStore, "", "", err)
	}
	return nil
}

// storeReceived persists a property write to the store. Datastream events
// and object-aggregated events carry no persistent state and are passed
// through untouched.
func (d *Device) storeReceived(ctx context.Context, ev connection.DataEvent) error {
	iface, ok := d.catalog.Get(ev.Interface)
	if !ok || iface.Type != interfaces.PropertiesType || ev.Data.IsObject() || ev.Data.Individual == nil {
		return nil
	}

	v := *ev.Data.Individual
	if v.IsUnset() {
		if err := d.store.UnsetProp(ctx, ev.Interface, ev.Path); err != nil {
			return wrapErr(KindStore, ev.Interface, ev.Path, err)
		}
		return nil
	}

	prop := storedProp(ev.Interface, ev.Path, v, iface)
	if err := d.store.StoreProp(ctx, prop); err != nil {
		return wrapErr(KindStore, ev.Interface, ev.Path, err)
	}
	return nil
}

// emit delivers ev on the events channel, returning false if the Device was
// closed first so HandleEvents can stop without blocking forever on a
// channel nobody drains anymore.
func (d *Device) emit(ev Event) bool {
	select {
	case d.events <- ev:
		return true
	case <-d.done:
		return false
	}
}
