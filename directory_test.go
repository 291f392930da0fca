// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"errors"
	"sync"
	"testing"
)

func TestAssignIDUnique(t *testing.T) {
	d := NewActorDirectory()
	seen := make(map[ActorID]bool)
	for i := 0; i < 1000; i++ {
		id := d.AssignID("Greeter")
		if seen[id] {
			t.Fatalf("identity %s assigned twice", id)
		}
		seen[id] = true
	}
	if d.Len() != 1000 {
		t.Errorf("Len = %d, want 1000", d.Len())
	}
}

func TestAssignIDConcurrent(t *testing.T) {
	d := NewActorDirectory()
	var (
		mu   sync.Mutex
		seen = make(map[ActorID]bool)
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := d.AssignID("Greeter")
				mu.Lock()
				if seen[id] {
					t.Errorf("identity %s assigned twice", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestResolveLifecycle(t *testing.T) {
	d := NewActorDirectory()
	id := d.AssignID("Greeter")

	if _, ok := d.Resolve(id, ""); ok {
		t.Errorf("resolved %s before it was ready", id)
	}
	a := NewBaseActor(id, nil)
	if err := d.ActorReady(a); err != nil {
		t.Fatalf("ActorReady: %v", err)
	}
	got, ok := d.Resolve(id, "Greeter")
	if !ok || got != a {
		t.Fatalf("Resolve = %v, %v", got, ok)
	}
	if _, ok := d.Resolve(id, "Counter"); ok {
		t.Errorf("resolved %s under the wrong type", id)
	}

	d.ResignID(id)
	if _, ok := d.Resolve(id, ""); ok {
		t.Errorf("resolved %s after resignation", id)
	}
	d.ResignID(id)
	if err := d.ActorReady(a); !errors.Is(err, ErrActorNotFound) {
		t.Errorf("ActorReady after resignation: got %v", err)
	}
}

func TestResolveUnknown(t *testing.T) {
	d := NewActorDirectory()
	if _, ok := d.Resolve("remote-actor", ""); ok {
		t.Errorf("resolved an identity this directory never assigned")
	}
}

func TestActorReadyRejects(t *testing.T) {
	d := NewActorDirectory()
	if err := d.ActorReady(NewBaseActor("stranger", nil)); !errors.Is(err, ErrActorNotFound) {
		t.Errorf("unassigned id: got %v", err)
	}
	id := d.AssignID("Greeter")
	if err := d.ActorReady(NewBaseActor(id, nil)); err != nil {
		t.Fatal(err)
	}
	if err := d.ActorReady(NewBaseActor(id, nil)); !errors.Is(err, ErrIdentityInUse) {
		t.Errorf("second actor on %s: got %v", id, err)
	}
}

func TestSingletonID(t *testing.T) {
	d := NewActorDirectory()
	id, err := d.AssignSingletonID("Greeter")
	if err != nil {
		t.Fatal(err)
	}
	if id != SingletonID("Greeter") {
		t.Errorf("got %s, want %s", id, SingletonID("Greeter"))
	}
	if _, err := d.AssignSingletonID("Greeter"); !errors.Is(err, ErrIdentityInUse) {
		t.Errorf("second singleton: got %v", err)
	}
	d.ResignID(id)
	if _, err := d.AssignSingletonID("Greeter"); !errors.Is(err, ErrIdentityInUse) {
		t.Errorf("singleton after resignation: got %v", err)
	}
	if _, err := d.AssignSingletonID(""); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("empty type: got %v", err)
	}
}
