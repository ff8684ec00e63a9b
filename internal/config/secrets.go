/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "Storyteller"

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// SetTokenStore swaps the keyring backend and returns a restore func.
func SetTokenStore(ts TokenStore) func() {
	prev := tokenStore
	tokenStore = ts
	return func() { tokenStore = prev }
}

// Secret source labels returned by Secret.
const (
	SourceEnv     = "env"
	SourceKeyring = "keyring"
	SourceNone    = "none"
)

func knownKey(name string) bool {
	for _, k := range ProviderKeys {
		if k == name {
			return true
		}
	}
	return false
}

// Secret resolves a provider key from the environment, then the keychain.
// A missing key returns "" with SourceNone and no error.
func Secret(name string) (value, source string, err error) {
	if !knownKey(name) {
		return "", SourceNone, fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, SourceEnv, nil
	}
	v, err := tokenStore.Get(keyringService, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", SourceNone, nil
		}
		return "", SourceNone, fmt.Errorf("keyring get %s: %w", name, err)
	}
	if v == "" {
		return "", SourceNone, nil
	}
	return v, SourceKeyring, nil
}

// Secrets returns every resolvable provider key, suitable for a child process environment.
// Keychain errors are skipped.
func Secrets() map[string]string {
	out := make(map[string]string, len(ProviderKeys))
	for _, k := range ProviderKeys {
		if v, _, err := Secret(k); err == nil && v != "" {
			out[k] = v
		}
	}
	return out
}

// StoreSecret saves a provider key into the keychain; an empty value deletes it.
func StoreSecret(name, value string) error {
	if !knownKey(name) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	if value == "" {
		if err := tokenStore.Delete(keyringService, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring delete %s: %w", name, err)
		}
		return nil
	}
	if err := tokenStore.Set(keyringService, name, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", name, err)
	}
	return nil
}
