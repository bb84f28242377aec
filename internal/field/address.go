// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package field

import (
	"sync"

	"github.com/Thermoquad/wellgate/pkg/xbee"
)

// AddressBook holds the 64-bit radio address of each site.
// Sites start at their configured address, which may be the broadcast
// placeholder until learned.
type AddressBook struct {
	mu    sync.RWMutex
	addrs map[uint8]uint64
}

// NewAddressBook creates an empty address book
func NewAddressBook() *AddressBook {
	return &AddressBook{addrs: make(map[uint8]uint64)}
}

// Set stores the address of a site
func (b *AddressBook) Set(site uint8, addr uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addrs[site] = addr
}

// Get returns the address of a site, or the broadcast placeholder
func (b *AddressBook) Get(site uint8) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if addr, ok := b.addrs[site]; ok {
		return addr
	}
	return xbee.AddressBroadcast
}

// Learn caches addr for a site that is still on the broadcast placeholder.
// Returns true if the address was stored.
func (b *AddressBook) Learn(site uint8, addr uint64) bool {
	if addr == xbee.AddressBroadcast || addr == 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.addrs[site]; ok && cur != xbee.AddressBroadcast {
		return false
	}
	b.addrs[site] = addr
	return true
}

// Learned reports whether the site has a unicast address
func (b *AddressBook) Learned(site uint8) bool {
	return b.Get(site) != xbee.AddressBroadcast
}
