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

import (
	"errors"
	"fmt"
	"strings"
)

// purgePropertiesTopic is the exact remainder, after the "<realm>/<device_id>/"
// prefix is stripped, that identifies the purge-properties control topic.
// Anything that merely starts with this string but continues further (e.g.
// "control/consumer/properties/another") is an ordinary interface/path pair
// on interface "control", not a purge directive.
const purgePropertiesTopic = "control/consumer/properties"

// Topic parsing errors, named after the original SDK's TopicError variants.
var (
	ErrEmptyTopic      = errors.New("mqtt: topic is empty")
	ErrUnknownClientID = errors.New("mqtt: topic does not belong to this client")
	ErrMalformedTopic  = errors.New("mqtt: malformed topic")
)

// ParsedTopic is the result of parsing a publish topic relative to this
// device's client id: either the purge-properties control directive, or an
// ordinary interface/path pair.
type ParsedTopic struct {
	Purge     bool
	Interface string
	Path      string
}

// ParseTopic strips the "<realm>/<device_id>/" prefix from topic and
// classifies what remains. clientID is "<realm>/<device_id>".
func ParseTopic(clientID, topic string) (ParsedTopic, error) {
	if topic == "" {
		return ParsedTopic{}, ErrEmptyTopic
	}

	rest, ok := strings.CutPrefix(topic, clientID)
	if !ok {
		return ParsedTopic{}, fmt.Errorf("%w: client id %q, topic %q", ErrUnknownClientID, clientID, topic)
	}

	rest, ok = strings.CutPrefix(rest, "/")
	if !ok {
		return ParsedTopic{}, fmt.Errorf("%w: %q has no path after the client id", ErrMalformedTopic, topic)
	}

	if rest == purgePropertiesTopic {
		return ParsedTopic{Purge: true}, nil
	}

	interfaceName, path, found := strings.Cut(rest, "/")
	if !found || interfaceName == "" || path == "" {
		return ParsedTopic{}, fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}

	return ParsedTopic{Interface: interfaceName, Path: "/" + path}, nil
}
