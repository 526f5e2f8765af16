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

// Package mqtt implements the concrete MQTT transport (component H): the
// connection/registry pair driven by the device runtime, backed by
// eclipse/paho.mqtt.golang, plus the reconnect/poll retry state machine.
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/astarte-platform/astarte-device-go/misc"
)

// Config is the transport's connection configuration: broker address,
// client identity, and transport security. Credential provisioning (pairing,
// certificate generation) is out of scope; Config accepts already-minted
// material.
type Config struct {
	Realm    string
	DeviceID string
	Brokers  []string
	TLSConfig *tls.Config

	// KeepAlive is the MQTT keep-alive interval. Zero uses the paho default.
	KeepAlive time.Duration
}

// Option customizes a Transport at construction time, following the
// functional-options shape the teacher's client.New uses.
type Option = func(t *Transport) error

// WithLogger overrides the default package logger.
func WithLogger(log *logrus.Entry) Option {
	return func(t *Transport) error {
		t.log = log
		return nil
	}
}

// WithPahoOptions lets the caller further customize the underlying paho
// ClientOptions (e.g. TLS certificates, a custom dialer) before Connect
// builds the client. fn is applied after the Config-derived defaults.
func WithPahoOptions(fn func(*paho.ClientOptions)) Option {
	return func(t *Transport) error {
		t.customizePaho = append(t.customizePaho, fn)
		return nil
	}
}

// WithEventBuffer sets the capacity of the channel NextEvent reads from.
// The default is 64.
func WithEventBuffer(n int) Option {
	return func(t *Transport) error {
		if n <= 0 {
			return fmt.Errorf("mqtt: event buffer must be positive, got %d", n)
		}
		t.eventBuffer = n
		return nil
	}
}

// NewTransport builds a Transport for cfg. The paho client is constructed
// lazily on the first Connect, so options that mutate the underlying
// ClientOptions (WithPahoOptions) may still run afterwards.
func NewTransport(cfg Config, resolver Resolver, opts ...Option) (*Transport, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	t := &Transport{
		cfg:         cfg,
		clientID:    cfg.Realm + "/" + cfg.DeviceID,
		resolver:    resolver,
		eventBuffer: 64,
		log:         logrus.NewEntry(logrus.StandardLogger()).WithField("component", "mqtt"),
	}

	for _, o := range opts {
		if err := o(t); err != nil {
			return nil, err
		}
	}

	t.init()

	return t, nil
}

func validateConfig(cfg Config) error {
	if cfg.Realm == "" || cfg.DeviceID == "" {
		return errors.New("mqtt: Config.Realm and Config.DeviceID are required")
	}
	if !misc.IsValidAstarteDeviceID(cfg.DeviceID) {
		return fmt.Errorf("mqtt: Config.DeviceID %q is not a valid Astarte device id", cfg.DeviceID)
	}
	if len(cfg.Brokers) == 0 {
		return errors.New("mqtt: Config.Brokers must not be empty")
	}
	return nil
}
