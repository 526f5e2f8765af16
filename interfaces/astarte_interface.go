// Copyright © 2020 Ispirata Srl
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

// Package interfaces implements the Astarte interface model: parsing and
// validating an interface schema, resolving paths to mappings, and the
// in-memory catalog of currently-installed interfaces.
package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/imdario/mergo"
)

// MaxMappings bounds the number of mappings an interface may declare.
const MaxMappings = 1024

// Type represents which kind of Astarte interface the object represents.
type Type string

const (
	PropertiesType Type = "properties"
	DatastreamType Type = "datastream"
)

func (t Type) IsValid() error {
	switch t {
	case PropertiesType, DatastreamType:
		return nil
	}
	return fmt.Errorf("%w: invalid interface type %q", ErrParse, t)
}

// Ownership represents the owner of an interface.
type Ownership string

const (
	DeviceOwnership Ownership = "device"
	ServerOwnership Ownership = "server"
)

func (o Ownership) IsValid() error {
	switch o {
	case DeviceOwnership, ServerOwnership:
		return nil
	}
	return fmt.Errorf("%w: invalid ownership %q", ErrParse, o)
}

// Aggregation represents the type of Aggregation of an Interface.
type Aggregation string

const (
	IndividualAggregation Aggregation = "individual"
	ObjectAggregation     Aggregation = "object"
)

func (a Aggregation) IsValid() error {
	switch a {
	case IndividualAggregation, ObjectAggregation:
		return nil
	}
	return fmt.Errorf("%w: invalid aggregation %q", ErrParse, a)
}

// Reliability represents the reliability of a mapping.
type Reliability string

const (
	UnreliableReliability Reliability = "unreliable"
	GuaranteedReliability Reliability = "guaranteed"
	UniqueReliability     Reliability = "unique"
)

func (r Reliability) IsValid() error {
	switch r {
	case UnreliableReliability, GuaranteedReliability, UniqueReliability:
		return nil
	}
	return fmt.Errorf("%w: invalid reliability %q", ErrParse, r)
}

// Retention represents retention for a single mapping.
type Retention string

const (
	DiscardRetention  Retention = "discard"
	VolatileRetention Retention = "volatile"
	StoredRetention   Retention = "stored"
)

func (r Retention) IsValid() error {
	switch r {
	case DiscardRetention, VolatileRetention, StoredRetention:
		return nil
	}
	return fmt.Errorf("%w: invalid retention %q", ErrParse, r)
}

// DatabaseRetentionPolicy represents the database retention policy of a mapping.
type DatabaseRetentionPolicy string

const (
	NoTTL  DatabaseRetentionPolicy = "no_ttl"
	UseTTL DatabaseRetentionPolicy = "use_ttl"
)

func (r DatabaseRetentionPolicy) IsValid() error {
	switch r {
	case NoTTL, UseTTL:
		return nil
	}
	return fmt.Errorf("%w: invalid database retention policy %q", ErrParse, r)
}

// MappingType represents the type of a single mapping's value. The string
// values match the Astarte Value Kind constants 1:1.
type MappingType string

const (
	Double           MappingType = "double"
	Integer          MappingType = "integer"
	Boolean          MappingType = "boolean"
	LongInteger      MappingType = "longinteger"
	String           MappingType = "string"
	BinaryBlob       MappingType = "binaryblob"
	DateTime         MappingType = "datetime"
	DoubleArray      MappingType = "doublearray"
	IntegerArray     MappingType = "integerarray"
	BooleanArray     MappingType = "booleanarray"
	LongIntegerArray MappingType = "longintegerarray"
	StringArray      MappingType = "stringarray"
	BinaryBlobArray  MappingType = "binaryblobarray"
	DateTimeArray    MappingType = "datetimearray"
)

func (m MappingType) IsValid() error {
	switch m {
	case Double, Integer, Boolean, LongInteger, String, BinaryBlob, DateTime,
		DoubleArray, IntegerArray, BooleanArray, LongIntegerArray, StringArray, BinaryBlobArray, DateTimeArray:
		return nil
	}
	return fmt.Errorf("%w: invalid mapping type %q", ErrParse, m)
}

// Mapping represents an individual Mapping in an Astarte Interface.
type Mapping struct {
	Endpoint                string                  `json:"endpoint"`
	Type                    MappingType             `json:"type"`
	Reliability             Reliability             `json:"reliability,omitempty"`
	Retention               Retention               `json:"retention,omitempty"`
	DatabaseRetentionPolicy DatabaseRetentionPolicy `json:"database_retention_policy,omitempty"`
	DatabaseRetentionTTL    int                     `json:"database_retention_ttl,omitempty"`
	Expiry                  int                     `json:"expiry,omitempty"`
	ExplicitTimestamp       bool                    `json:"explicit_timestamp,omitempty"`
	AllowUnset              bool                    `json:"allow_unset,omitempty"`
	Description             string                  `json:"description,omitempty"`
	Documentation           string                  `json:"doc,omitempty"`
}

// defaultMapping holds the zero-value defaults merged onto every parsed
// mapping via mergo, replacing the teacher's hand-rolled per-field default
// assignment (EnsureInterfaceDefaults in the original astarte-go).
var defaultMapping = Mapping{
	Reliability:             UnreliableReliability,
	Retention:               DiscardRetention,
	DatabaseRetentionPolicy: NoTTL,
}

// IsParametric reports whether the mapping endpoint has a "%{...}" placeholder.
func (m Mapping) IsParametric() bool { return endpointIsParametric(m.Endpoint) }

// EndpointTail returns the last '/'-delimited segment of the endpoint,
// without slashes - used as the object aggregate's field key.
func (m Mapping) EndpointTail() string {
	segments := strings.Split(m.Endpoint, "/")
	return segments[len(segments)-1]
}

// Interface represents an Astarte Interface: an immutable, versioned schema
// for one or more related mappings.
type Interface struct {
	Name          string      `json:"interface_name"`
	MajorVersion  int         `json:"version_major"`
	MinorVersion  int         `json:"version_minor"`
	Type          Type        `json:"type"`
	Ownership     Ownership   `json:"ownership"`
	Aggregation   Aggregation `json:"aggregation,omitempty"`
	Description   string      `json:"description,omitempty"`
	Documentation string      `json:"doc,omitempty"`
	Mappings      []Mapping   `json:"mappings"`
}

type requiredInterface struct {
	Name         *string           `json:"interface_name"`
	MajorVersion *int              `json:"version_major"`
	MinorVersion *int              `json:"version_minor"`
	Type         *string           `json:"type"`
	Ownership    *string           `json:"ownership"`
	Mappings     []requiredMapping `json:"mappings"`
}

type requiredMapping struct {
	Endpoint *string `json:"endpoint"`
	Type     *string `json:"type"`
}

func (r *requiredInterface) ensureRequiredFields(b []byte) error {
	if err := json.Unmarshal(b, r); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if r.Name == nil || *r.Name == "" {
		return fmt.Errorf("%w: interface_name must be set", ErrParse)
	}
	if r.MajorVersion == nil {
		return fmt.Errorf("%w: version_major must be set", ErrParse)
	}
	if r.MinorVersion == nil {
		return fmt.Errorf("%w: version_minor must be set", ErrParse)
	}
	if r.Type == nil {
		return fmt.Errorf("%w: type must be set", ErrParse)
	}
	if r.Ownership == nil {
		return fmt.Errorf("%w: ownership must be set", ErrParse)
	}
	if len(r.Mappings) == 0 {
		return ErrEmptyMappings
	}
	for _, m := range r.Mappings {
		if m.Endpoint == nil || *m.Endpoint == "" {
			return fmt.Errorf("%w: missing endpoint in mapping", ErrParse)
		}
		if m.Type == nil {
			return fmt.Errorf("%w: missing type in mapping", ErrParse)
		}
	}
	return nil
}

// ParseInterface parses an interface from a JSON document, validates every
// invariant spec'd in §3/§4.B, and applies field defaults.
func ParseInterface(document []byte) (Interface, error) {
	iface := Interface{}
	required := requiredInterface{}

	if err := required.ensureRequiredFields(document); err != nil {
		return Interface{}, err
	}

	if err := json.Unmarshal(document, &iface); err != nil {
		return Interface{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if err := iface.Type.IsValid(); err != nil {
		return Interface{}, err
	}
	if err := iface.Ownership.IsValid(); err != nil {
		return Interface{}, err
	}

	iface = ensureDefaults(iface)

	if err := iface.validate(); err != nil {
		return Interface{}, err
	}

	return iface, nil
}

// ParseInterfaceFromString is a convenience wrapper around ParseInterface.
func ParseInterfaceFromString(document string) (Interface, error) {
	return ParseInterface([]byte(document))
}

func ensureDefaults(iface Interface) Interface {
	if err := iface.Aggregation.IsValid(); err != nil {
		iface.Aggregation = IndividualAggregation
	}

	merged := make([]Mapping, len(iface.Mappings))
	for i, m := range iface.Mappings {
		if err := m.Reliability.IsValid(); err != nil {
			m.Reliability = ""
		}
		if err := m.Retention.IsValid(); err != nil {
			m.Retention = ""
		}
		if err := m.DatabaseRetentionPolicy.IsValid(); err != nil {
			m.DatabaseRetentionPolicy = ""
		}
		withDefaults := defaultMapping
		_ = mergo.Merge(&withDefaults, m, mergo.WithOverride)
		merged[i] = withDefaults
	}
	iface.Mappings = merged

	return iface
}

// validate enforces the structural invariants of §3/§4.B that are not
// checked by required-field presence alone.
func (i Interface) validate() error {
	if i.MajorVersion == 0 && i.MinorVersion == 0 {
		return ErrMajorMinor
	}
	if len(i.Mappings) == 0 {
		return ErrEmptyMappings
	}
	if len(i.Mappings) > MaxMappings {
		return fmt.Errorf("%w: %d mappings, max is %d", ErrTooManyMappings, len(i.Mappings), MaxMappings)
	}
	if i.Type == PropertiesType && i.Aggregation == ObjectAggregation {
		return fmt.Errorf("%w: a properties interface must be Individual", ErrInconsistentMapping)
	}

	seen := map[string]struct{}{}
	for _, m := range i.Mappings {
		if _, err := ParseMappingPath(templateToExamplePath(m.Endpoint)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEndpointField, err)
		}
		if m.DatabaseRetentionPolicy == UseTTL && m.DatabaseRetentionTTL <= 0 {
			return ErrMissingTtl
		}
		for existingEndpoint := range seen {
			if endpointsConflict(existingEndpoint, m.Endpoint) {
				return fmt.Errorf("%w: %q and %q", ErrDuplicateMapping, existingEndpoint, m.Endpoint)
			}
		}
		seen[m.Endpoint] = struct{}{}
	}

	if i.Aggregation == ObjectAggregation {
		if err := validateObjectMappings(i.Mappings); err != nil {
			return err
		}
	}

	return nil
}

// templateToExamplePath substitutes every "%{name}" placeholder with a
// nonempty literal so the generic MappingPath grammar (which knows nothing
// about placeholders) can validate segment shape.
func templateToExamplePath(endpoint string) string {
	segments := strings.Split(endpoint, "/")
	for i, seg := range segments {
		if isParametric(seg) {
			segments[i] = "x"
		}
	}
	return strings.Join(segments, "/")
}

func endpointsConflict(a, b string) bool {
	if a == b {
		return true
	}
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		aParam, bParam := isParametric(as[i]), isParametric(bs[i])
		if aParam && bParam {
			continue
		}
		if aParam != bParam {
			return false
		}
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// validateObjectMappings enforces: at least 2 levels, shared prefix (only
// the last level differs), shared retention+ttl, and consistent
// explicit_timestamp across every mapping of an Object-aggregation interface.
func validateObjectMappings(mappings []Mapping) error {
	first := mappings[0]
	firstSegments := strings.Split(first.Endpoint, "/")
	if len(firstSegments) < 3 {
		// "/a/b" -> ["", "a", "b"]: need at least 2 non-empty levels.
		return fmt.Errorf("%w: %q", ErrObjectEndpointTooShort, first.Endpoint)
	}
	prefix := strings.Join(firstSegments[:len(firstSegments)-1], "/")

	for _, m := range mappings[1:] {
		segments := strings.Split(m.Endpoint, "/")
		if len(segments) < 3 {
			return fmt.Errorf("%w: %q", ErrObjectEndpointTooShort, m.Endpoint)
		}
		if strings.Join(segments[:len(segments)-1], "/") != prefix {
			return fmt.Errorf("%w: %q does not share the prefix of %q", ErrInconsistentEndpoints, m.Endpoint, first.Endpoint)
		}
		if m.Retention != first.Retention || m.Expiry != first.Expiry {
			return fmt.Errorf("%w: retention/ttl differs for %q", ErrInconsistentMapping, m.Endpoint)
		}
		if m.ExplicitTimestamp != first.ExplicitTimestamp {
			return fmt.Errorf("%w: explicit_timestamp differs for %q", ErrInconsistentMapping, m.Endpoint)
		}
	}

	return nil
}

// AsObjectRef returns the interface's mappings and ok=true only if its
// aggregation is Object.
func (i Interface) AsObjectRef() ([]Mapping, bool) {
	if i.Aggregation != ObjectAggregation {
		return nil, false
	}
	return i.Mappings, true
}

// AsMappingRef resolves a concrete path to one of the interface's mappings,
// or returns ok=false if no mapping matches.
func (i Interface) AsMappingRef(path MappingPath) (Mapping, bool) {
	for _, m := range i.Mappings {
		if path.Matches(m.Endpoint) {
			return m, true
		}
	}
	return Mapping{}, false
}

// ObjectMappingByTail resolves the trailing endpoint segment of an Object
// interface's mapping set (the object aggregate's field key) to its Mapping.
func (i Interface) ObjectMappingByTail(tail string) (Mapping, bool) {
	for _, m := range i.Mappings {
		if m.EndpointTail() == tail {
			return m, true
		}
	}
	return Mapping{}, false
}

// ObjectPathPrefix returns the shared prefix of an Object interface's
// mappings (every level but the last), which is the path an object
// aggregate is published/received on.
func (i Interface) ObjectPathPrefix() string {
	if len(i.Mappings) == 0 {
		return ""
	}
	segments := strings.Split(i.Mappings[0].Endpoint, "/")
	return strings.Join(segments[:len(segments)-1], "/")
}

// ValidateVersionChange enforces the catalog update rule from §4.B: major
// may only increase; on the same major, minor must be >= previous; the
// name must never change.
func ValidateVersionChange(prev, next Interface) error {
	if prev.Name != next.Name {
		return fmt.Errorf("%w: %q != %q", ErrNameMismatch, next.Name, prev.Name)
	}
	if next.MajorVersion < prev.MajorVersion {
		return fmt.Errorf("%w: major version cannot decrease (%d -> %d)", ErrVersion, prev.MajorVersion, next.MajorVersion)
	}
	if next.MajorVersion == prev.MajorVersion && next.MinorVersion < prev.MinorVersion {
		return fmt.Errorf("%w: minor version cannot decrease within the same major (%d -> %d)", ErrVersion, prev.MinorVersion, next.MinorVersion)
	}
	return nil
}

// IsInterfaceError reports whether err wraps one of this package's sentinel
// validation errors.
func IsInterfaceError(err error) bool {
	for _, e := range []error{ErrParse, ErrMajorMinor, ErrEmptyMappings, ErrDuplicateMapping,
		ErrInconsistentMapping, ErrInconsistentEndpoints, ErrObjectEndpointTooShort,
		ErrTooManyMappings, ErrInvalidEndpointField, ErrMissingTtl, ErrNameMismatch, ErrVersion} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
