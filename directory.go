// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type directoryEntry struct {
	typeName string
	actor    Actor
}

// ActorDirectory assigns, resolves and resigns actor identities of this
// process. An identity is never handed out twice, even after resignation.
type ActorDirectory struct {
	mu       sync.RWMutex
	entries  map[ActorID]*directoryEntry
	resigned map[ActorID]struct{}
}

// NewActorDirectory returns an empty directory.
func NewActorDirectory() *ActorDirectory {
	return &ActorDirectory{
		entries:  make(map[ActorID]*directoryEntry),
		resigned: make(map[ActorID]struct{}),
	}
}

// AssignID mints a fresh identity for a new local actor of typeName.
func (d *ActorDirectory) AssignID(typeName string) ActorID {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		id := ActorID(uuid.NewString())
		if d.inUse(id) {
			continue
		}
		d.entries[id] = &directoryEntry{typeName: typeName}
		return id
	}
}

// AssignSingletonID assigns the well-known identity of a singleton actor,
// which is its type name.
func (d *ActorDirectory) AssignSingletonID(typeName string) (ActorID, error) {
	id := SingletonID(typeName)
	if id == "" {
		return "", fmt.Errorf("%w: singleton without a type name", ErrProtocolViolation)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inUse(id) {
		return "", fmt.Errorf("%w: %s", ErrIdentityInUse, id)
	}
	d.entries[id] = &directoryEntry{typeName: typeName}
	return id, nil
}

// SingletonID is the identity every process uses to address the singleton
// actor of typeName.
func SingletonID(typeName string) ActorID { return ActorID(typeName) }

func (d *ActorDirectory) inUse(id ActorID) bool {
	if _, ok := d.entries[id]; ok {
		return true
	}
	_, ok := d.resigned[id]
	return ok
}

// ActorReady makes an assigned identity resolvable to a.
func (d *ActorDirectory) ActorReady(a Actor) error {
	id := a.ID()
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s was not assigned by this directory", ErrActorNotFound, id)
	}
	if e.actor != nil && e.actor != a {
		return fmt.Errorf("%w: %s is bound to another actor", ErrIdentityInUse, id)
	}
	e.actor = a
	return nil
}

// Resolve returns the local actor for id if it is ready and was assigned for
// typeName; an empty typeName matches any type. Remote, unknown and resigned
// identities resolve to absent.
func (d *ActorDirectory) Resolve(id ActorID, typeName string) (Actor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[id]
	if !ok || e.actor == nil {
		return nil, false
	}
	if typeName != "" && e.typeName != typeName {
		return nil, false
	}
	return e.actor, true
}

// ResignID releases id. Resolve reports it absent from then on.
func (d *ActorDirectory) ResignID(id ActorID) {
	d.mu.Lock()
	if _, ok := d.entries[id]; ok {
		delete(d.entries, id)
		d.resigned[id] = struct{}{}
	}
	d.mu.Unlock()
}

// Len returns the number of live identities.
func (d *ActorDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
