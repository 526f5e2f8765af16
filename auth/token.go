// Copyright © 2020 Ispirata Srl
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

// Package auth handles the device's own credential material: parsing the PEM
// private key a device is provisioned with, and (for setups that provision a
// JWT-shaped credential secret instead of an mTLS client certificate)
// generating and validating that credential token. It also classifies
// connection failures into the fatal "credential is wrong, don't retry"
// class versus ordinary transport errors, a distinction the mqtt package
// needs to decide whether to keep backing off or give up.
package auth

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	jwt "github.com/cristalhq/jwt/v3"
)

var (
	// ErrKeyMustBePEMEncoded is returned when the key is not encoded in PEM format
	ErrKeyMustBePEMEncoded = errors.New("auth: key must be PEM encoded")
	// ErrNotPrivateKey is returned when the private key is not valid
	ErrNotPrivateKey = errors.New("auth: key is not a valid private key")
	// ErrUnsupportedPrivateKey is returned when the chosen private key is not supported for JWT generation
	ErrUnsupportedPrivateKey = errors.New("auth: key is not supported for JWT generation")

	// ErrInvalidCredential marks a connection refused because the broker
	// rejected the device's identity or secret outright: retrying with the
	// same credential will never succeed.
	ErrInvalidCredential = errors.New("auth: device credential rejected by broker")
	// ErrCredentialExpired marks a connection refused because the device's
	// credential token has expired.
	ErrCredentialExpired = errors.New("auth: device credential expired")
)

// DeviceClaims is the claim set carried by a device credential token, issued
// to a device instead of an mTLS client certificate in pairing setups that
// use JWT-shaped credential secrets.
type DeviceClaims struct {
	jwt.StandardClaims

	RealmName string `json:"a_realm,omitempty"`
	DeviceID  string `json:"a_device,omitempty"`
}

func (c *DeviceClaims) MarshalBinary() ([]byte, error) {
	return json.Marshal(c)
}

// ParsePrivateKeyFromPEM parses a PEM encoded private key.
func ParsePrivateKeyFromPEM(key []byte) (interface{}, error) {
	var err error

	block, _ := pem.Decode(key)
	if block == nil {
		return nil, ErrKeyMustBePEMEncoded
	}

	var parsedKey interface{}
	switch block.Type {
	case "RSA PRIVATE KEY":
		if parsedKey, err = x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
			return nil, err
		}

	case "PRIVATE KEY":
		if parsedKey, err = x509.ParsePKCS8PrivateKey(block.Bytes); err != nil {
			return nil, err
		}

	case "EC PRIVATE KEY":
		if parsedKey, err = x509.ParseECPrivateKey(block.Bytes); err != nil {
			return nil, err
		}

	default:
		return nil, ErrNotPrivateKey
	}

	switch parsedKey.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey:
		return parsedKey, nil
	default:
		return nil, ErrUnsupportedPrivateKey
	}
}

// GenerateDeviceCredentialToken builds a JWT-shaped credential token for
// realm/deviceID out of a PEM private key, valid for ttlSeconds (0 means no
// expiry).
func GenerateDeviceCredentialToken(privateKeyPEM []byte, realm, deviceID string, ttlSeconds int64) (string, error) {
	key, err := ParsePrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return "", err
	}

	claims := DeviceClaims{RealmName: realm, DeviceID: deviceID}
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttlSeconds > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(ttlSeconds) * time.Second))
	}

	signer, err := getJWTSigner(key)
	if err != nil {
		return "", err
	}

	token, err := jwt.NewBuilder(signer).Build(&claims)
	if err != nil {
		return "", err
	}

	return token.String(), nil
}

// GetDeviceCredentialClaims parses and returns the claims of a device
// credential token, without verifying its signature (the broker does that).
func GetDeviceCredentialClaims(rawToken string) (DeviceClaims, error) {
	token, err := jwt.ParseString(rawToken)
	if err != nil {
		return DeviceClaims{}, err
	}

	var claims DeviceClaims
	if err := json.Unmarshal(token.RawClaims(), &claims); err != nil {
		return DeviceClaims{}, err
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return claims, ErrCredentialExpired
	}

	return claims, nil
}

// IsCredentialError reports whether err represents a fatal identity/secret
// problem (ErrInvalidCredential or ErrCredentialExpired), as opposed to a
// retryable transport failure.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrCredentialExpired)
}

func getJWTSigner(key interface{}) (jwt.Signer, error) {
	var signer jwt.Signer
	var err error
	switch k := key.(type) {
	case *rsa.PrivateKey:
		signer, err = jwt.NewSignerRS(jwt.RS256, k)

	case *ecdsa.PrivateKey:
		switch k.PublicKey.Curve.Params().Name {
		case "P-256":
			signer, err = jwt.NewSignerES(jwt.ES256, k)
		case "P-384":
			signer, err = jwt.NewSignerES(jwt.ES384, k)
		case "P-521":
			signer, err = jwt.NewSignerES(jwt.ES512, k)
		default:
			return nil, ErrUnsupportedPrivateKey
		}
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrUnsupportedPrivateKey, key)
	}

	if err != nil {
		return nil, err
	}

	return signer, nil
}
