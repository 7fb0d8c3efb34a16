/*
 * Copyright (c) 2023. Anton Starikov -- All Rights Reserved
 *
 * This file is part of OTRVHUB project.
 *
 * OTRVHUB is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as the Free Software Foundation,
 * either version 3 of the License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package nvstore describes the node's byte-addressed non-volatile settings store.
//
// Every byte reads as Unset (0xFF) until written. Updates skip the write when the stored
// byte already holds the value, so repeated settings do not wear the medium.
package nvstore

import (
	"fmt"
	"sync"
)

// Addr is an address in the persistent byte store.
type Addr uint16

// Unset is the value of an erased or never written byte.
const Unset byte = 0xFF

// Size is the number of addressable bytes.
const Size = 512

const (
	AddrFrostC Addr = iota
	AddrWarmC
	// AddrMinBoilerOnMinutesInv is stored inverted so an erased byte reads as 0 (not a hub).
	AddrMinBoilerOnMinutesInv
	AddrMinValvePCReallyOpen
	AddrOverrunCounterInv
	AddrSetbackLockoutHoursInv
)

const (
	AddrScheduleBase Addr = 8
	ScheduleEntries       = 2
	ScheduleEntryBytes    = 4

	AddrStatsBase Addr = 32
	HoursPerDay        = 24
)

// StatsAddr is the address of hour within stats set.
func StatsAddr(set, hour uint8) Addr {
	return AddrStatsBase + Addr(set)*HoursPerDay + Addr(hour)
}

// ScheduleAddr is the first of the ScheduleEntryBytes bytes of schedule entry n.
func ScheduleAddr(n int) Addr {
	return AddrScheduleBase + Addr(n*ScheduleEntryBytes)
}

// Store is the persistent setting store consumed by the control code.
type Store interface {
	// Get returns the byte at addr, Unset if never written.
	Get(addr Addr) byte
	// Update writes v at addr unless already stored.
	Update(addr Addr, v byte) error
	// Erase resets addr to Unset.
	Erase(addr Addr) error
}

// ErrBadAddr reports an address outside the store.
type ErrBadAddr Addr

func (e ErrBadAddr) Error() string {
	return fmt.Sprintf("nvstore: address %d out of range", Addr(e))
}

// GetInverted reads a byte stored inverted, so that an erased byte reads as 0.
func GetInverted(s Store, addr Addr) byte {
	return ^s.Get(addr)
}

// UpdateInverted stores v inverted; storing 0 erases the byte.
func UpdateInverted(s Store, addr Addr, v byte) error {
	if v == 0 {
		return s.Erase(addr)
	}
	return s.Update(addr, ^v)
}

// IncrementInverted adds one to an inverted counter, saturating at 255.
func IncrementInverted(s Store, addr Addr) (byte, error) {
	v := GetInverted(s, addr)
	if v == 0xFF {
		return v, nil
	}
	v++
	return v, UpdateInverted(s, addr, v)
}

// GetUint16 reads a big-endian pair; 0xFFFF means unset.
func GetUint16(s Store, addr Addr) uint16 {
	return uint16(s.Get(addr))<<8 | uint16(s.Get(addr+1))
}

// UpdateUint16 writes a big-endian pair.
func UpdateUint16(s Store, addr Addr, v uint16) error {
	if err := s.Update(addr, byte(v>>8)); err != nil {
		return err
	}
	return s.Update(addr+1, byte(v))
}

// MemStore is a volatile Store, used when no database is configured and in tests.
type MemStore struct {
	mu     sync.Mutex
	data   [Size]byte
	writes int
}

func NewMemStore() *MemStore {
	m := &MemStore{}
	for i := range m.data {
		m.data[i] = Unset
	}
	return m
}

func (m *MemStore) Get(addr Addr) byte {
	if int(addr) >= Size {
		return Unset
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[addr]
}

func (m *MemStore) Update(addr Addr, v byte) error {
	if int(addr) >= Size {
		return ErrBadAddr(addr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[addr] != v {
		m.data[addr] = v
		m.writes++
	}
	return nil
}

func (m *MemStore) Erase(addr Addr) error {
	return m.Update(addr, Unset)
}

// Writes counts the physical writes performed so far.
func (m *MemStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
