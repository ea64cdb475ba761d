/*
 * stream-relay is a project to aggregate live TV catalogs and relay HLS streams.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package session

import (
	"sync"
	"time"

	"github.com/lucasduport/stream-relay/pkg/types"
)

// TokenStore holds the single cached signature of one upstream family.
// The slot is overwrite-only: readers always observe either the previous or
// the next signature, never a torn one.
type TokenStore struct {
	mu  sync.RWMutex
	sig types.Signature

	// refreshMu serializes handshakes so N concurrent expired callers
	// produce a bounded number of upstream POSTs instead of N.
	refreshMu sync.Mutex
}

// NewTokenStore returns an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the cached signature, if any.
func (s *TokenStore) Get() (types.Signature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sig, !s.sig.IsZero()
}

// Set swaps in a new signature.
func (s *TokenStore) Set(sig types.Signature) {
	s.mu.Lock()
	s.sig = sig
	s.mu.Unlock()
}

// IsExpired reports whether the cached signature is absent or older than ttl.
func (s *TokenStore) IsExpired(ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sig.IsZero() || s.sig.Age() >= ttl
}

// Refresh runs fn to obtain a new signature while holding the refresh lock.
// Callers that arrive while a refresh is in flight wait for it and then
// re-check the slot: if the signature is fresh by the time they hold the
// lock, fn is not called again.
func (s *TokenStore) Refresh(ttl time.Duration, force bool, fn func() (types.Signature, error)) (types.Signature, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if !force && !s.IsExpired(ttl) {
		sig, _ := s.Get()
		return sig, nil
	}

	sig, err := fn()
	if err != nil {
		return types.Signature{}, err
	}
	s.Set(sig)
	return sig, nil
}
