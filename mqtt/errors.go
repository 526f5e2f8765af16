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

import "errors"

var (
	// ErrNotConnected is returned when an operation needs the underlying
	// client before the first Connect has created it, or when the event
	// channel has been closed.
	ErrNotConnected = errors.New("mqtt: transport is not connected")

	// ErrConnectTimeout is returned (wrapping ctx.Err()) when the broker does
	// not answer the CONNECT packet before the caller's context expires or
	// is cancelled.
	ErrConnectTimeout = errors.New("mqtt: connect timed out")

	// ErrClient wraps a failure surfaced by the underlying pub/sub client
	// (publish, subscribe, unsubscribe).
	ErrClient = errors.New("mqtt: client error")

	// ErrHandshake names a failure of the reconnect handshake (§4.J). The
	// handshake runs in package device, which reports its failures as
	// transport errors of its own; nothing in this package returns
	// ErrHandshake.
	ErrHandshake = errors.New("mqtt: reconnect handshake failed")
)
