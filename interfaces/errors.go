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

package interfaces

import "errors"

var (
	// ErrParse is returned when an interface document cannot be parsed or
	// fails field-level validation.
	ErrParse = errors.New("interface: parse error")

	// ErrMajorMinor is returned when an interface declares version 0.0.
	ErrMajorMinor = errors.New("interface: major and minor version cannot both be 0")

	// ErrEmptyMappings is returned when an interface declares no mappings.
	ErrEmptyMappings = errors.New("interface: mappings must not be empty")

	// ErrTooManyMappings is returned when an interface declares more than MaxMappings mappings.
	ErrTooManyMappings = errors.New("interface: too many mappings")

	// ErrDuplicateMapping is returned when two mappings of the same
	// interface resolve to conflicting endpoints.
	ErrDuplicateMapping = errors.New("interface: duplicate or conflicting mapping endpoints")

	// ErrInconsistentMapping is returned when mappings of an Object
	// aggregation interface disagree on retention, ttl or timestamp.
	ErrInconsistentMapping = errors.New("interface: inconsistent mapping attributes")

	// ErrInconsistentEndpoints is returned when mappings of an Object
	// aggregation interface do not share a common endpoint prefix.
	ErrInconsistentEndpoints = errors.New("interface: object mappings must share a common endpoint prefix")

	// ErrObjectEndpointTooShort is returned when an Object aggregation
	// mapping's endpoint has fewer than 2 levels.
	ErrObjectEndpointTooShort = errors.New("interface: object mapping endpoint is too short")

	// ErrInvalidEndpointField is returned when a mapping's endpoint field fails to parse.
	ErrInvalidEndpointField = errors.New("interface: invalid mapping endpoint")

	// ErrMissingTtl is returned when a mapping declares use_ttl without a
	// positive database_retention_ttl.
	ErrMissingTtl = errors.New("interface: database_retention_ttl must be set when use_ttl is selected")

	// ErrNameMismatch is returned by ValidateVersionChange when the
	// candidate interface's name differs from the installed one.
	ErrNameMismatch = errors.New("interface: name mismatch on update")

	// ErrVersion is returned by ValidateVersionChange when the candidate
	// interface's version would move backwards.
	ErrVersion = errors.New("interface: version cannot decrease")
)
