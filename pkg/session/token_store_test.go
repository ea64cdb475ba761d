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
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lucasduport/stream-relay/pkg/types"
)

func TestTokenStoreEmpty(t *testing.T) {
	store := NewTokenStore()

	if _, ok := store.Get(); ok {
		t.Error("empty store returned a signature")
	}
	if !store.IsExpired(time.Hour) {
		t.Error("empty store is not expired")
	}
}

func TestTokenStoreSetGet(t *testing.T) {
	store := NewTokenStore()
	store.Set(types.Signature{Value: "sig-1", AcquiredAt: time.Now()})

	sig, ok := store.Get()
	if !ok || sig.Value != "sig-1" {
		t.Fatalf("Get() = (%v, %v)", sig, ok)
	}
	if store.IsExpired(time.Hour) {
		t.Error("fresh signature reported as expired")
	}
	if !store.IsExpired(0) {
		t.Error("signature with zero TTL not expired")
	}
}

func TestRefreshSkipsWhenFresh(t *testing.T) {
	store := NewTokenStore()
	store.Set(types.Signature{Value: "sig-1", AcquiredAt: time.Now()})

	called := false
	sig, err := store.Refresh(time.Hour, false, func() (types.Signature, error) {
		called = true
		return types.Signature{Value: "sig-2", AcquiredAt: time.Now()}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("refresh fn called despite fresh signature")
	}
	if sig.Value != "sig-1" {
		t.Errorf("Refresh returned %q, want cached sig-1", sig.Value)
	}
}

func TestRefreshForceAlwaysCalls(t *testing.T) {
	store := NewTokenStore()
	store.Set(types.Signature{Value: "sig-1", AcquiredAt: time.Now()})

	sig, err := store.Refresh(time.Hour, true, func() (types.Signature, error) {
		return types.Signature{Value: "sig-2", AcquiredAt: time.Now()}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if sig.Value != "sig-2" {
		t.Errorf("forced Refresh returned %q, want sig-2", sig.Value)
	}
}

// Concurrent expired callers must coalesce: the fn runs once, everyone gets
// the same fresh signature, and the slot is swapped atomically.
func TestRefreshCoalescesConcurrentCallers(t *testing.T) {
	store := NewTokenStore()

	var calls int32
	refresh := func() (types.Signature, error) {
		n := atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return types.Signature{Value: fmt.Sprintf("sig-%d", n), AcquiredAt: time.Now()}, nil
	}

	const workers = 16
	results := make([]types.Signature, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sig, err := store.Refresh(time.Hour, false, refresh)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = sig
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("refresh fn ran %d times, want 1", got)
	}
	for i, sig := range results {
		if sig.Value != "sig-1" {
			t.Errorf("worker %d got %q, want sig-1", i, sig.Value)
		}
	}
}

func TestRefreshErrorKeepsOldSignature(t *testing.T) {
	store := NewTokenStore()
	stale := types.Signature{Value: "sig-old", AcquiredAt: time.Now().Add(-time.Hour)}
	store.Set(stale)

	_, err := store.Refresh(time.Minute, false, func() (types.Signature, error) {
		return types.Signature{}, fmt.Errorf("upstream down")
	})
	if err == nil {
		t.Fatal("expected refresh error")
	}

	sig, ok := store.Get()
	if !ok || sig.Value != "sig-old" {
		t.Errorf("stale signature lost after failed refresh: (%v, %v)", sig, ok)
	}
}
