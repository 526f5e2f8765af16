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
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Purge reconciliation errors, named after the original SDK's
// PropertiesError variants.
var (
	ErrPayloadTooShort = errors.New("properties: purge payload shorter than the length prefix")
	ErrDecompress      = errors.New("properties: purge payload failed to decompress")
	ErrUtf8            = errors.New("properties: purge payload is not valid UTF-8")
)

// DecodePurgePayload parses the purge-properties control payload: a 4-byte
// little-endian uncompressed size followed by zlib-compressed UTF-8 text
// listing "<interface><path>" entries separated by ';'.
func DecodePurgePayload(payload []byte) (map[string]struct{}, error) {
	if len(payload) < 4 {
		return nil, ErrPayloadTooShort
	}

	uncompressedSize := binary.LittleEndian.Uint32(payload[:4])

	r, err := zlib.NewReader(bytes.NewReader(payload[4:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	defer r.Close()

	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	if uint32(len(decoded)) != uncompressedSize {
		return nil, fmt.Errorf("%w: length prefix says %d, decompressed to %d bytes", ErrDecompress, uncompressedSize, len(decoded))
	}

	if !utf8.Valid(decoded) {
		return nil, ErrUtf8
	}

	set := make(map[string]struct{})
	for _, entry := range splitNonEmpty(string(decoded), ';') {
		set[entry] = struct{}{}
	}
	return set, nil
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// PurgeProperties reconciles store against a purge directive's survivor
// set: every device-owned property not named "<interface><path>" in kept
// is deleted, tombstones included.
func PurgeProperties(ctx context.Context, s PropertyStore, kept map[string]struct{}) error {
	devProps, err := s.DevicePropsWithUnset(ctx)
	if err != nil {
		return fmt.Errorf("properties: load device properties for purge: %w", err)
	}

	for _, prop := range devProps {
		key := prop.Interface + prop.Path
		if _, ok := kept[key]; ok {
			continue
		}
		if err := s.DeleteProp(ctx, prop.Interface, prop.Path); err != nil {
			return fmt.Errorf("properties: purge delete %s%s: %w", prop.Interface, prop.Path, err)
		}
	}
	return nil
}
