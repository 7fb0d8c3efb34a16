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

package sensor

import "sync"

// FakeTemperature is a Temperature for tests; Reads counts Read calls.
type FakeTemperature struct {
	mu    sync.Mutex
	Value int
	Valid bool
	Reads int
}

func (f *FakeTemperature) Read() {
	f.mu.Lock()
	f.Reads++
	f.mu.Unlock()
}

func (f *FakeTemperature) Set(c16 int) {
	f.mu.Lock()
	f.Value, f.Valid = c16, true
	f.mu.Unlock()
}

func (f *FakeTemperature) C16() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Value, f.Valid
}

// FakeAmbientLight is an AmbientLight with directly settable state.
type FakeAmbientLight struct {
	mu        sync.Mutex
	Lvl       uint8
	Valid     bool
	Dark      bool
	DarkMins  uint8
	Reads     int
	CalMin    uint8
	CalMax    uint8
	CalCalled bool
}

func (f *FakeAmbientLight) Read() {
	f.mu.Lock()
	f.Reads++
	f.mu.Unlock()
}

func (f *FakeAmbientLight) Level() (uint8, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Lvl, f.Valid
}

func (f *FakeAmbientLight) DarkMinutes() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.DarkMins
}

func (f *FakeAmbientLight) IsRoomDark() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Dark
}

func (f *FakeAmbientLight) Recalibrate(min, max uint8) {
	f.mu.Lock()
	f.CalMin, f.CalMax, f.CalCalled = min, max, true
	f.mu.Unlock()
}

// FakeSupply reports a fixed battery state.
type FakeSupply struct{ Low bool }

func (f *FakeSupply) Read()       {}
func (f *FakeSupply) IsLow() bool { return f.Low }

// FakeHumidity reports a fixed humidity.
type FakeHumidity struct {
	Pc    uint8
	Valid bool
}

func (f *FakeHumidity) Read()                  {}
func (f *FakeHumidity) Percent() (uint8, bool) { return f.Pc, f.Valid }
