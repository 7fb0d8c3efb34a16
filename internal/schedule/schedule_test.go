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

package schedule

import (
	"testing"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/nvstore"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hm(h, m int) uint16 { return uint16(h*60 + m) }

func newSchedule() *Schedule {
	return New(nvstore.NewMemStore(), config.NewScheduleConfig())
}

func TestEmptySchedule(t *testing.T) {
	s := newSchedule()
	e, err := s.Entry(0)
	require.NoError(t, err)
	assert.False(t, e.IsSet())
	assert.False(t, s.IsOnNow(hm(7, 0)))
	assert.False(t, s.IsOnSoon(hm(7, 0)))
	assert.Equal(t, NoAction, s.Check(hm(7, 0)))
}

func TestOnNowAndSoon(t *testing.T) {
	s := newSchedule()
	require.NoError(t, s.SetEntry(0, hm(7, 0), hm(9, 0)))

	assert.True(t, s.IsOnSoon(hm(6, 50)))
	assert.True(t, s.IsOnSoon(hm(6, 0)))
	assert.False(t, s.IsOnSoon(hm(5, 59)))
	assert.False(t, s.IsOnSoon(hm(7, 0)))

	assert.False(t, s.IsOnNow(hm(6, 59)))
	assert.True(t, s.IsOnNow(hm(7, 0)))
	assert.True(t, s.IsOnNow(hm(8, 59)))
	assert.False(t, s.IsOnNow(hm(9, 0)))
}

func TestWrapsMidnight(t *testing.T) {
	s := newSchedule()
	require.NoError(t, s.SetEntry(1, hm(23, 30), hm(0, 30)))
	assert.True(t, s.IsOnNow(hm(23, 45)))
	assert.True(t, s.IsOnNow(hm(0, 10)))
	assert.False(t, s.IsOnNow(hm(0, 30)))

	require.NoError(t, s.SetEntry(0, hm(0, 20), Unset))
	assert.True(t, s.IsOnSoon(hm(23, 50)))
	assert.True(t, s.IsOnNow(hm(1, 19)), "default on time applies when off is unset")
	assert.False(t, s.IsOnNow(hm(1, 20)))
}

func TestCheck(t *testing.T) {
	s := newSchedule()
	require.NoError(t, s.SetEntry(0, hm(7, 0), hm(9, 0)))
	require.NoError(t, s.SetEntry(1, hm(8, 0), hm(10, 0)))

	assert.Equal(t, SwitchToWarm, s.Check(hm(7, 0)))
	assert.Equal(t, NoAction, s.Check(hm(7, 1)))
	assert.Equal(t, NoAction, s.Check(hm(9, 0)), "second entry still on")
	assert.Equal(t, SwitchToFrost, s.Check(hm(10, 0)))
}

func TestValidationAndClear(t *testing.T) {
	s := newSchedule()
	assert.True(t, errors.Is(s.SetEntry(2, 0, 0), ErrNoSuchEntry))
	assert.True(t, errors.Is(s.SetEntry(0, MinutesPerDay, Unset), ErrInvalidTime))
	assert.True(t, errors.Is(s.SetEntry(0, 10, MinutesPerDay), ErrInvalidTime))
	_, err := s.Entry(-1)
	assert.Error(t, err)

	require.NoError(t, s.SetEntry(0, hm(6, 0), hm(7, 0)))
	require.NoError(t, s.Clear(0))
	e, _ := s.Entry(0)
	assert.False(t, e.IsSet())
	assert.Equal(t, Unset, e.Off)
}

func TestSeedOnlyFillsUnsetSlots(t *testing.T) {
	s := newSchedule()
	require.NoError(t, s.SetEntry(0, hm(5, 0), hm(6, 0)))
	require.NoError(t, s.Seed([]config.ScheduleEntryConfig{
		{On: "07:00", Off: "08:00"},
		{On: "18:30"},
	}))

	e0, _ := s.Entry(0)
	assert.Equal(t, hm(5, 0), e0.On)
	e1, _ := s.Entry(1)
	assert.Equal(t, hm(18, 30), e1.On)
	assert.Equal(t, Unset, e1.Off)

	assert.Error(t, s.Seed(make([]config.ScheduleEntryConfig, 3)))
}

func TestFormatMinute(t *testing.T) {
	assert.Equal(t, "07:05", FormatMinute(hm(7, 5)))
	assert.Equal(t, "--:--", FormatMinute(Unset))
}

type failingStore struct {
	*nvstore.MemStore
	failAt nvstore.Addr
	fail   bool
}

func (f *failingStore) Update(addr nvstore.Addr, v byte) error {
	if f.fail && addr == f.failAt {
		return errors.New("write failed")
	}
	return f.MemStore.Update(addr, v)
}

func TestFailedSetEntryLeavesEntryUnchanged(t *testing.T) {
	nv := &failingStore{MemStore: nvstore.NewMemStore(), failAt: nvstore.ScheduleAddr(0) + 2}
	s := New(nv, config.NewScheduleConfig())
	require.NoError(t, s.SetEntry(0, hm(7, 0), hm(9, 0)))

	nv.fail = true
	assert.Error(t, s.SetEntry(0, hm(6, 0), hm(8, 0)))
	e, err := s.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, Entry{On: hm(7, 0), Off: hm(9, 0)}, e)

	// a never written entry stays unset
	nv.failAt = nvstore.ScheduleAddr(1) + 2
	assert.Error(t, s.SetEntry(1, hm(6, 0), hm(8, 0)))
	e, _ = s.Entry(1)
	assert.False(t, e.IsSet())
	for i := nvstore.Addr(0); i < nvstore.ScheduleEntryBytes; i++ {
		assert.Equal(t, nvstore.Unset, nv.Get(nvstore.ScheduleAddr(1)+i))
	}
}
