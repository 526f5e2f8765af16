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

package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/astarte-platform/astarte-device-go/interfaces"
	"github.com/astarte-platform/astarte-device-go/payload"
	"github.com/astarte-platform/astarte-device-go/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS properties (
	interface TEXT NOT NULL,
	path TEXT NOT NULL,
	value BLOB,
	kind TEXT NOT NULL,
	interface_major INTEGER NOT NULL,
	ownership TEXT NOT NULL,
	PRIMARY KEY (interface, path)
);
`

// SQLiteStore is a PropertyStore backed by a pure-Go, cgo-free sqlite
// database (modernc.org/sqlite), storing each property's value as a BSON
// blob exactly like it travels over MQTT.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) a sqlite database at uri
// and ensures its schema exists.
func OpenSQLiteStore(uri string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate sqlite database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) StoreProp(ctx context.Context, prop StoredProp) error {
	raw, err := payload.SerializeIndividual(prop.Value, nil)
	if err != nil {
		return fmt.Errorf("store: serialize property: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO properties (interface, path, value, kind, interface_major, ownership)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(interface, path) DO UPDATE SET value=excluded.value, kind=excluded.kind, interface_major=excluded.interface_major, ownership=excluded.ownership`,
		prop.Interface, prop.Path, raw, string(prop.Value.Kind()), prop.InterfaceMajor, string(prop.Ownership))
	if err != nil {
		return fmt.Errorf("store: insert property: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadProp(ctx context.Context, interfaceName, path string, interfaceMajor int) (types.Value, bool, error) {
	var raw []byte
	var kind string
	var major int
	err := s.db.QueryRowContext(ctx,
		`SELECT value, kind, interface_major FROM properties WHERE interface = ? AND path = ?`,
		interfaceName, path).Scan(&raw, &kind, &major)
	if err == sql.ErrNoRows {
		return types.Value{}, false, nil
	}
	if err != nil {
		return types.Value{}, false, fmt.Errorf("store: load property: %w", err)
	}

	if major != interfaceMajor {
		if delErr := s.DeleteProp(ctx, interfaceName, path); delErr != nil {
			return types.Value{}, false, delErr
		}
		return types.Value{}, false, nil
	}

	if raw == nil {
		return types.Value{}, false, nil
	}

	v, _, err := payload.DeserializeIndividual(raw, types.Kind(kind), false, false)
	if err != nil {
		return types.Value{}, false, fmt.Errorf("store: decode property: %w", err)
	}
	return v, true, nil
}

func (s *SQLiteStore) UnsetProp(ctx context.Context, interfaceName, path string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE properties SET value = NULL WHERE interface = ? AND path = ?`,
		interfaceName, path)
	if err != nil {
		return fmt.Errorf("store: unset property: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteProp(ctx context.Context, interfaceName, path string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM properties WHERE interface = ? AND path = ?`, interfaceName, path)
	if err != nil {
		return fmt.Errorf("store: delete property: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM properties`)
	if err != nil {
		return fmt.Errorf("store: clear properties: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadAllProps(ctx context.Context) ([]StoredProp, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interface, path, value, kind, interface_major, ownership FROM properties WHERE value IS NOT NULL ORDER BY interface, path`)
	if err != nil {
		return nil, fmt.Errorf("store: load all properties: %w", err)
	}
	defer rows.Close()

	var out []StoredProp
	for rows.Next() {
		var iface, path, kind, ownership string
		var raw []byte
		var major int
		if err := rows.Scan(&iface, &path, &raw, &kind, &major, &ownership); err != nil {
			return nil, fmt.Errorf("store: scan property row: %w", err)
		}
		v, _, err := payload.DeserializeIndividual(raw, types.Kind(kind), false, false)
		if err != nil {
			return nil, fmt.Errorf("store: decode property %s%s: %w", iface, path, err)
		}
		out = append(out, StoredProp{
			Interface: iface, Path: path, Value: v,
			InterfaceMajor: major, Ownership: interfaces.Ownership(ownership),
		})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeviceProps(ctx context.Context) ([]StoredProp, error) {
	return s.propsByOwnership(ctx, interfaces.DeviceOwnership)
}

func (s *SQLiteStore) ServerProps(ctx context.Context) ([]StoredProp, error) {
	return s.propsByOwnership(ctx, interfaces.ServerOwnership)
}

func (s *SQLiteStore) propsByOwnership(ctx context.Context, ownership interfaces.Ownership) ([]StoredProp, error) {
	all, err := s.LoadAllProps(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StoredProp, 0, len(all))
	for _, p := range all {
		if p.Ownership == ownership {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *SQLiteStore) InterfaceProps(ctx context.Context, interfaceName string) ([]StoredProp, error) {
	all, err := s.LoadAllProps(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StoredProp, 0)
	for _, p := range all {
		if p.Interface == interfaceName {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *SQLiteStore) DeleteInterface(ctx context.Context, interfaceName string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE interface = ?`, interfaceName)
	if err != nil {
		return fmt.Errorf("store: delete interface properties: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DevicePropsWithUnset(ctx context.Context) ([]OptStoredProp, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT interface, path, value, kind, interface_major, ownership FROM properties WHERE ownership = ? ORDER BY interface, path`,
		string(interfaces.DeviceOwnership))
	if err != nil {
		return nil, fmt.Errorf("store: load device properties with unset: %w", err)
	}
	defer rows.Close()

	var out []OptStoredProp
	for rows.Next() {
		var iface, path, kind, ownership string
		var raw []byte
		var major int
		if err := rows.Scan(&iface, &path, &raw, &kind, &major, &ownership); err != nil {
			return nil, fmt.Errorf("store: scan property row: %w", err)
		}
		opt := OptStoredProp{Interface: iface, Path: path, InterfaceMajor: major, Ownership: interfaces.Ownership(ownership)}
		if raw != nil {
			v, _, err := payload.DeserializeIndividual(raw, types.Kind(kind), false, false)
			if err != nil {
				return nil, fmt.Errorf("store: decode property %s%s: %w", iface, path, err)
			}
			opt.Value = &v
		}
		out = append(out, opt)
	}
	return out, rows.Err()
}
