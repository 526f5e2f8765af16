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

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Catalog is the thread-safe set of interfaces currently installed on a
// device. Reads (lookups used on the hot publish/receive path) take a
// read lock; installs and removals take a write lock.
type Catalog struct {
	mu         sync.RWMutex
	interfaces map[string]Interface
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{interfaces: make(map[string]Interface)}
}

// Add installs iface, validating the version-change rule against any
// previously-installed interface of the same name.
func (c *Catalog) Add(iface Interface) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.interfaces[iface.Name]; ok {
		if err := ValidateVersionChange(prev, iface); err != nil {
			return err
		}
	}
	c.interfaces[iface.Name] = iface
	return nil
}

// AddFromString parses and installs an interface document in one step.
func (c *Catalog) AddFromString(document string) error {
	iface, err := ParseInterfaceFromString(document)
	if err != nil {
		return err
	}
	return c.Add(iface)
}

// Remove uninstalls the named interface. It is a no-op if not present.
func (c *Catalog) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.interfaces, name)
}

// Get returns the installed interface with the given name.
func (c *Catalog) Get(name string) (Interface, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	iface, ok := c.interfaces[name]
	return iface, ok
}

// Len returns the number of installed interfaces.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.interfaces)
}

// Iter calls fn once for every installed interface, in a stable (sorted by
// name) order. Iteration stops early if fn returns false.
func (c *Catalog) Iter(fn func(Interface) bool) {
	c.mu.RLock()
	names := make([]string, 0, len(c.interfaces))
	for name := range c.interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	snapshot := make([]Interface, 0, len(names))
	for _, name := range names {
		snapshot = append(snapshot, c.interfaces[name])
	}
	c.mu.RUnlock()

	for _, iface := range snapshot {
		if !fn(iface) {
			return
		}
	}
}

// PropertyMapping resolves interfaceName+path to the installed Properties
// interface's mapping, failing if the interface is missing or not a
// Properties interface.
func (c *Catalog) PropertyMapping(interfaceName string, path MappingPath) (Interface, Mapping, error) {
	iface, ok := c.Get(interfaceName)
	if !ok {
		return Interface{}, Mapping{}, fmt.Errorf("%w: interface %q is not installed", ErrParse, interfaceName)
	}
	if iface.Type != PropertiesType {
		return Interface{}, Mapping{}, fmt.Errorf("%w: interface %q is not a properties interface", ErrParse, interfaceName)
	}
	mapping, ok := iface.AsMappingRef(path)
	if !ok {
		return Interface{}, Mapping{}, fmt.Errorf("%w: no mapping matches path %q on interface %q", ErrInvalidEndpointField, path, interfaceName)
	}
	return iface, mapping, nil
}

// introspectionEntry is the (name, major, minor) triple serialized into the
// introspection string sent on connect.
type introspectionEntry struct {
	name  string
	major int
	minor int
}

// IntrospectionString renders the catalog's introspection payload: one
// "name:major:minor" triple per installed interface, separated by ";", in
// a stable order.
func (c *Catalog) IntrospectionString() string {
	entries := make([]introspectionEntry, 0, c.Len())
	c.Iter(func(iface Interface) bool {
		entries = append(entries, introspectionEntry{iface.Name, iface.MajorVersion, iface.MinorVersion})
		return true
	})

	out := ""
	for i, e := range entries {
		if i > 0 {
			out += ";"
		}
		out += fmt.Sprintf("%s:%d:%d", e.name, e.major, e.minor)
	}
	return out
}

// MarshalJSON renders the catalog as a JSON object keyed by interface name,
// matching the introspection document format Astarte expects over HTTP.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c.interfaces)
}
