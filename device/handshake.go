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

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/store"
)

// Connect establishes the session and, if the broker reports no prior
// session (session_present=false), runs the reconnect handshake of §4.J:
// subscribe to the purge topic and every server-owned interface, publish
// introspection, publish the empty-cache sentinel, then republish every
// surviving device property. Failure at any step propagates as a *Error;
// the caller is expected to retry the whole of Connect after backoff, since
// the handshake is not resumable mid-sequence.
func (d *Device) Connect(ctx context.Context) error {
	sessionPresent, err := d.conn.Connect(ctx)
	if err != nil {
		return wrapErr(KindTransport, "", "", err)
	}
	if sessionPresent {
		d.log.Debug("broker resumed a prior session, skipping reconnect handshake")
		return nil
	}

	if err := d.runHandshake(ctx); err != nil {
		return err
	}

	if marker, ok := d.conn.(interface{ MarkRunning() }); ok {
		marker.MarkRunning()
	}
	return nil
}

func (d *Device) runHandshake(ctx context.Context) error {
	survivors, err := d.survivingDeviceProperties(ctx)
	if err != nil {
		return wrapErr(KindStore, "", "", err)
	}

	if err := d.reg.SubscribePurgeProperties(ctx); err != nil {
		return wrapErr(KindTransport, "", "", err)
	}

	var serverIfaceErr error
	d.catalog.Iter(func(iface interfaces.Interface) bool {
		if iface.Ownership != interfaces.ServerOwnership {
			return true
		}
		if err := d.reg.Subscribe(ctx, iface.Name); err != nil {
			serverIfaceErr = wrapErr(KindTransport, iface.Name, "", err)
			return false
		}
		return true
	})
	if serverIfaceErr != nil {
		return serverIfaceErr
	}

	if err := d.reg.SendIntrospection(ctx, d.catalog.IntrospectionString()); err != nil {
		return wrapErr(KindTransport, "", "", err)
	}

	if err := d.reg.SendEmptyCache(ctx); err != nil {
		return wrapErr(KindTransport, "", "", err)
	}

	for _, prop := range survivors {
		path, err := interfaces.ParseMappingPath(prop.Path)
		if err != nil {
			return wrapErr(KindTopic, prop.Interface, prop.Path, err)
		}
		_, mapping, err := d.catalog.PropertyMapping(prop.Interface, path)
		if err != nil {
			return wrapErr(KindValidation, prop.Interface, prop.Path, err)
		}
		if err := d.conn.SendIndividual(ctx, prop.Interface, path, prop.Value, nil, mapping.Reliability); err != nil {
			return wrapErr(KindTransport, prop.Interface, prop.Path, err)
		}
	}

	return nil
}

// survivingDeviceProperties returns the device-owned properties that should
// be republished on handshake: the owning interface must still be installed,
// still device-owned, and its stored major version must equal the catalog
// interface's current major. Everything else is left for the next purge
// round to reconcile rather than republished blind.
func (d *Device) survivingDeviceProperties(ctx context.Context) ([]store.StoredProp, error) {
	all, err := d.store.DeviceProps(ctx)
	if err != nil {
		return nil, err
	}

	survivors := make([]store.StoredProp, 0, len(all))
	for _, prop := range all {
		iface, ok := d.catalog.Get(prop.Interface)
		if !ok {
			continue
		}
		if iface.Ownership != interfaces.DeviceOwnership {
			continue
		}
		if iface.MajorVersion != prop.InterfaceMajor {
			continue
		}
		survivors = append(survivors, prop)
	}
	return survivors, nil
}
