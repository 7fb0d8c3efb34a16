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

// Package schedule holds the user's daily warm periods.
package schedule

import (
	"fmt"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/nvstore"

	"github.com/pkg/errors"
)

const (
	Unset         uint16 = 0xFFFF
	MinutesPerDay        = 24 * 60
	Entries              = nvstore.ScheduleEntries
)

var (
	ErrInvalidTime = errors.New("invalid minute of day")
	ErrNoSuchEntry = errors.New("no such schedule entry")
)

// Entry is one warm period; Off may be Unset, in which case the period lasts the
// configured default on time.
type Entry struct {
	On  uint16
	Off uint16
}

func (e Entry) IsSet() bool { return e.On != Unset }

type Action uint8

const (
	NoAction Action = iota
	SwitchToWarm
	SwitchToFrost
)

type Schedule struct {
	nv        nvstore.Store
	preWarm   uint16
	defaultOn uint16
}

func New(nv nvstore.Store, cfg *config.ScheduleConfig) *Schedule {
	return &Schedule{nv: nv, preWarm: cfg.PreWarmMinutes, defaultOn: cfg.DefaultOnMinutes}
}

// Seed stores configured entries into slots that have never been set.
func (s *Schedule) Seed(entries []config.ScheduleEntryConfig) error {
	for i, ec := range entries {
		if i >= Entries {
			return errors.Wrapf(ErrNoSuchEntry, "entry %d", i)
		}
		if e, _ := s.Entry(i); e.IsSet() {
			continue
		}
		on, err := config.ParseMinuteOfDay(ec.On)
		if err != nil {
			return err
		}
		off := Unset
		if ec.Off != "" {
			if off, err = config.ParseMinuteOfDay(ec.Off); err != nil {
				return err
			}
		}
		if err := s.SetEntry(i, on, off); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schedule) Entry(n int) (Entry, error) {
	if n < 0 || n >= Entries {
		return Entry{On: Unset, Off: Unset}, errors.Wrapf(ErrNoSuchEntry, "entry %d", n)
	}
	addr := nvstore.ScheduleAddr(n)
	e := Entry{On: nvstore.GetUint16(s.nv, addr), Off: nvstore.GetUint16(s.nv, addr+2)}
	if e.On >= MinutesPerDay {
		e.On = Unset
	}
	if e.Off >= MinutesPerDay {
		e.Off = Unset
	}
	return e, nil
}

func (s *Schedule) SetEntry(n int, on, off uint16) error {
	if n < 0 || n >= Entries {
		return errors.Wrapf(ErrNoSuchEntry, "entry %d", n)
	}
	if on >= MinutesPerDay || (off != Unset && off >= MinutesPerDay) {
		return errors.Wrapf(ErrInvalidTime, "entry %d: %d-%d", n, on, off)
	}
	addr := nvstore.ScheduleAddr(n)
	var saved [nvstore.ScheduleEntryBytes]byte
	for i := range saved {
		saved[i] = s.nv.Get(addr + nvstore.Addr(i))
	}
	err := nvstore.UpdateUint16(s.nv, addr, on)
	if err == nil {
		err = nvstore.UpdateUint16(s.nv, addr+2, off)
	}
	if err != nil {
		s.restore(addr, saved[:])
		return errors.WithMessagef(err, "entry %d", n)
	}
	return nil
}

// restore puts back the bytes of an entry whose update failed half way.
func (s *Schedule) restore(addr nvstore.Addr, saved []byte) {
	for i, b := range saved {
		a := addr + nvstore.Addr(i)
		if s.nv.Get(a) == b {
			continue
		}
		var err error
		if b == nvstore.Unset {
			err = s.nv.Erase(a)
		} else {
			err = s.nv.Update(a, b)
		}
		if err != nil {
			logger.L().Errorf("Cannot restore schedule byte %d: %v", a, err)
		}
	}
}

func (s *Schedule) Clear(n int) error {
	if n < 0 || n >= Entries {
		return errors.Wrapf(ErrNoSuchEntry, "entry %d", n)
	}
	addr := nvstore.ScheduleAddr(n)
	for i := nvstore.Addr(0); i < nvstore.ScheduleEntryBytes; i++ {
		if err := s.nv.Erase(addr + i); err != nil {
			return err
		}
	}
	return nil
}

// offTime is the effective end of e.
func (s *Schedule) offTime(e Entry) uint16 {
	if e.Off != Unset {
		return e.Off
	}
	return (e.On + s.defaultOn) % MinutesPerDay
}

func within(m, from, to uint16) bool {
	if from <= to {
		return m >= from && m < to
	}
	return m >= from || m < to
}

func (s *Schedule) each(fn func(Entry) bool) bool {
	for i := 0; i < Entries; i++ {
		if e, _ := s.Entry(i); e.IsSet() && fn(e) {
			return true
		}
	}
	return false
}

// IsOnNow reports whether any warm period covers minute m of the day.
func (s *Schedule) IsOnNow(m uint16) bool {
	return s.each(func(e Entry) bool { return within(m, e.On, s.offTime(e)) })
}

// IsOnSoon reports whether a warm period starts within the pre-warm window after m.
func (s *Schedule) IsOnSoon(m uint16) bool {
	return s.each(func(e Entry) bool {
		until := (e.On + MinutesPerDay - m%MinutesPerDay) % MinutesPerDay
		return until > 0 && until <= s.preWarm
	})
}

// Check returns the mode switch due at minute m, if any.
func (s *Schedule) Check(m uint16) Action {
	if s.each(func(e Entry) bool { return e.On == m }) {
		return SwitchToWarm
	}
	if s.each(func(e Entry) bool { return s.offTime(e) == m }) && !s.IsOnNow(m) {
		return SwitchToFrost
	}
	return NoAction
}

// FormatMinute renders a minute of day as "HH:MM", or "--:--" if unset.
func FormatMinute(m uint16) string {
	if m >= MinutesPerDay {
		return "--:--"
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
