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

// Package payload implements the BSON wire envelope Astarte uses for every
// MQTT message body: a document with a "v" field carrying the value (a
// scalar for individual interfaces, a nested document for object
// aggregation) and an optional "t" field carrying an explicit timestamp.
package payload

import "errors"

var (
	// ErrBSON is returned when a payload cannot be encoded or decoded as BSON.
	ErrBSON = errors.New("payload: malformed BSON envelope")

	// ErrMissingValue is returned when a decoded envelope has no "v" field.
	ErrMissingValue = errors.New("payload: envelope has no value field")

	// ErrUnexpectedTimestamp is returned when an envelope carries a "t" field
	// for a mapping that does not declare explicit_timestamp.
	ErrUnexpectedTimestamp = errors.New("payload: unexpected explicit timestamp")

	// ErrTypeMismatch is returned when the decoded value's BSON type does not
	// match the mapping's declared type.
	ErrTypeMismatch = errors.New("payload: value does not match the expected type")

	// ErrUnknownKey is returned when an object aggregate envelope carries a
	// key that does not resolve to any mapping of the interface.
	ErrUnknownKey = errors.New("payload: unknown object key")

	// ErrNotObject is returned when an object aggregate envelope's "v" field
	// is not itself a document.
	ErrNotObject = errors.New("payload: value field is not an object")

	// ErrUnsetNotAllowed is returned when an empty (or explicitly null)
	// payload is decoded against a mapping that does not declare allow_unset.
	ErrUnsetNotAllowed = errors.New("payload: unset not allowed for this mapping")
)
