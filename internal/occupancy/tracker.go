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

package occupancy

import (
	"sync"

	"github.com/antst/otrvhub/internal/config"
)

// Source is the occupancy capability consumed by the setback decision.
type Source interface {
	// Percent is the confidence the room is occupied, 0..100.
	Percent() uint8
	IsLikelyOccupied() bool
	IsLikelyUnoccupied() bool
	// VacancyHours is how long the room has been vacant, saturating at 255.
	VacancyHours() uint8
	IsLongVacant() bool
	IsLongLongVacant() bool
}

// Tracker derives occupancy from activity signals (button presses, motion, lights on)
// and is advanced once a minute by Read.
type Tracker struct {
	mu         sync.Mutex
	cfg        config.OccupancyConfig
	countdownM uint8
	vacancyM   uint8
	vacancyH   uint8
}

func NewTracker(cfg *config.OccupancyConfig) *Tracker {
	return &Tracker{cfg: *cfg}
}

// MarkAsOccupied records a strong signal such as manual control use.
func (t *Tracker) MarkAsOccupied() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.countdownM = t.cfg.TimeoutMinutes
	t.vacancyM, t.vacancyH = 0, 0
}

// MarkAsPossiblyOccupied records a weak signal such as lights coming on.
func (t *Tracker) MarkAsPossiblyOccupied() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if half := t.cfg.TimeoutMinutes / 2; t.countdownM < half {
		t.countdownM = half
	}
	t.vacancyM, t.vacancyH = 0, 0
}

// Read advances the tracker by one minute.
func (t *Tracker) Read() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.countdownM > 0 {
		t.countdownM--
		return
	}
	t.vacancyM++
	if t.vacancyM >= 60 {
		t.vacancyM = 0
		if t.vacancyH < 0xFF {
			t.vacancyH++
		}
	}
}

func (t *Tracker) Percent() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.countdownM == 0 {
		return 0
	}
	pc := uint16(t.countdownM) * 100 / uint16(t.cfg.TimeoutMinutes)
	if pc == 0 {
		return 1
	}
	if pc > 100 {
		return 100
	}
	return uint8(pc)
}

func (t *Tracker) IsLikelyOccupied() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countdownM != 0
}

func (t *Tracker) IsLikelyUnoccupied() bool {
	return !t.IsLikelyOccupied()
}

func (t *Tracker) VacancyHours() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.vacancyH
}

func (t *Tracker) IsLongVacant() bool {
	return t.VacancyHours() >= t.cfg.LongVacantHours
}

func (t *Tracker) IsLongLongVacant() bool {
	return t.VacancyHours() >= t.cfg.LongLongVacantHours
}

// Static is a fixed Source, for nodes fed occupancy from elsewhere and for tests.
type Static struct {
	Pct            uint8
	LikelyOccupied bool
	VacancyH       uint8
	LongVacant     bool
	LongLongVacant bool
}

func (s Static) Percent() uint8           { return s.Pct }
func (s Static) IsLikelyOccupied() bool   { return s.LikelyOccupied }
func (s Static) IsLikelyUnoccupied() bool { return !s.LikelyOccupied }
func (s Static) VacancyHours() uint8      { return s.VacancyH }
func (s Static) IsLongVacant() bool       { return s.LongVacant || s.LongLongVacant }
func (s Static) IsLongLongVacant() bool   { return s.LongLongVacant }
