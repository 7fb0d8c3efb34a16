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

package setback

import (
	"testing"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/nvstore"
	"github.com/antst/otrvhub/internal/occupancy"
	"github.com/antst/otrvhub/internal/state"
	"github.com/antst/otrvhub/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *Engine {
	cfg := config.Default()
	return NewEngine(cfg.Targets, cfg.Setback, cfg.Valve)
}

func warmInputs(warm uint8, occ occupancy.Source) Inputs {
	return Inputs{Mode: state.Warm, FrostC: 6, WarmC: warm, Occupancy: occ, Hour: 10}
}

func TestLongVacantEcoDarkIsFullSetback(t *testing.T) {
	e := newEngine()
	in := warmInputs(18, occupancy.Static{VacancyH: 30, LongVacant: true})
	in.DarkMinutes = 255
	in.RoomDark = true

	target, level := e.ComputeTargetTemp(in)
	assert.Equal(t, Full, level)
	assert.Equal(t, uint8(18-4), target)

	ts := e.Compute(in)
	assert.Equal(t, uint8(4), ts.SetbackC)
}

func TestFrostPreWarmsAheadOfSchedule(t *testing.T) {
	e := newEngine()
	in := Inputs{
		Mode:      state.Frost,
		FrostC:    6,
		WarmC:     21,
		Schedule:  ScheduleState{OnSoon: true},
		Occupancy: occupancy.Static{VacancyH: 2},
	}
	target, _ := e.ComputeTargetTemp(in)
	assert.Equal(t, uint8(21-1), target)
	assert.Greater(t, target, in.FrostC)

	in.WarmC = 17
	target, _ = e.ComputeTargetTemp(in)
	assert.Equal(t, uint8(17-3), target, "eco warm target uses the larger offset")

	in.RecentUIUse = true
	target, _ = e.ComputeTargetTemp(in)
	assert.Equal(t, uint8(6), target)

	in.RecentUIUse = false
	in.Occupancy = occupancy.Static{LongVacant: true, VacancyH: 40}
	target, _ = e.ComputeTargetTemp(in)
	assert.Equal(t, uint8(6), target)

	in.Occupancy = nil
	in.Schedule.OnSoon = false
	target, _ = e.ComputeTargetTemp(in)
	assert.Equal(t, uint8(6), target)
}

func TestPreWarmNeverBelowFrost(t *testing.T) {
	e := newEngine()
	in := Inputs{Mode: state.Frost, FrostC: 7, WarmC: 8, Schedule: ScheduleState{OnSoon: true}}
	target, _ := e.ComputeTargetTemp(in)
	assert.Equal(t, uint8(7), target)
}

func TestBake(t *testing.T) {
	e := newEngine()
	in := warmInputs(18, nil)
	in.Mode = state.Bake
	in.RoomTempValid = true
	in.RoomTempC16 = 23*16 + 8

	ts := e.Compute(in)
	assert.Equal(t, uint8(23), ts.TargetC)
	assert.Equal(t, None, ts.Level)
	assert.True(t, ts.UnderTarget)
	assert.False(t, ts.CancelBake)

	in.RoomTempC16 = 24 * 16
	ts = e.Compute(in)
	assert.False(t, ts.UnderTarget)
	assert.True(t, ts.CancelBake)

	in.WarmC = 93
	assert.Equal(t, uint8(95), e.Compute(in).TargetC)
}

func TestEcoSetbackWhenNotEcoBiased(t *testing.T) {
	e := newEngine()
	in := warmInputs(20, occupancy.Static{})
	in.DarkMinutes = 30
	in.RoomDark = true

	target, level := e.ComputeTargetTemp(in)
	assert.Equal(t, Eco, level)
	assert.Equal(t, uint8(17), target)
}

func TestLikelyOccupiedGetsDefaultSetback(t *testing.T) {
	e := newEngine()
	in := warmInputs(18, occupancy.Static{LikelyOccupied: true, Pct: 80})
	in.DarkMinutes = 30
	in.RoomDark = true

	target, level := e.ComputeTargetTemp(in)
	assert.Equal(t, Default, level)
	assert.Equal(t, uint8(17), target)
}

func TestVetoes(t *testing.T) {
	e := newEngine()
	base := warmInputs(18, occupancy.Static{VacancyH: 3})
	base.DarkMinutes = 200
	base.RoomDark = true

	_, level := e.ComputeTargetTemp(base)
	require.Equal(t, Full, level)

	in := base
	in.Schedule.OnNow = true
	target, level := e.ComputeTargetTemp(in)
	assert.Equal(t, None, level)
	assert.Equal(t, uint8(18), target)

	in = base
	in.RecentUIUse = true
	_, level = e.ComputeTargetTemp(in)
	assert.Equal(t, None, level)

	in = base
	in.SetbackLockout = true
	_, level = e.ComputeTargetTemp(in)
	assert.Equal(t, None, level)

	in = base
	in.Schedule.OnSoon = true
	_, level = e.ComputeTargetTemp(in)
	assert.Equal(t, Default, level)

	in = base
	in.DarkMinutes = 100
	_, level = e.ComputeTargetTemp(in)
	assert.Equal(t, Eco, level, "not dark for long enough for full setback")
}

func TestNotEligibleWithoutEvidence(t *testing.T) {
	e := newEngine()
	in := warmInputs(18, occupancy.Static{LikelyOccupied: true})
	target, level := e.ComputeTargetTemp(in)
	assert.Equal(t, None, level)
	assert.Equal(t, uint8(18), target)
}

func TestLongVacantAlwaysWins(t *testing.T) {
	e := newEngine()
	for _, warm := range []uint8{16, 17, 18, 19} {
		for mask := 0; mask < 1<<6; mask++ {
			in := warmInputs(warm, occupancy.Static{
				LongVacant:     true,
				VacancyH:       25,
				LongLongVacant: mask&1 != 0,
				LikelyOccupied: mask&2 != 0,
			})
			in.Schedule = ScheduleState{OnNow: mask&4 != 0, OnSoon: mask&8 != 0}
			in.RecentUIUse = mask&16 != 0
			if mask&32 != 0 {
				in.DarkMinutes, in.RoomDark = 255, true
			}
			_, level := e.ComputeTargetTemp(in)
			require.Equal(t, Full, level, "warm=%d mask=%b", warm, mask)
		}
	}
}

func TestHistoryPredicates(t *testing.T) {
	e := newEngine()
	st := stats.New(nvstore.NewMemStore(), 3, nil)
	for h := uint8(0); h < stats.HoursPerDay; h++ {
		st.Sample(stats.Occupancy, h*4)
		require.NoError(t, st.CommitHour(h))
	}

	in := warmInputs(18, occupancy.Static{VacancyH: 1})
	in.Stats = st
	in.Hour = 10
	p := e.Evaluate(in)
	assert.Equal(t, 10, p.HoursLessOccupiedThanThis)
	assert.Equal(t, 11, p.HoursLessOccupiedThanNext)
	assert.Equal(t, 15, p.OccupiedSoonThreshold)
	assert.True(t, p.NotLikelyOccupiedSoon)
	assert.False(t, p.UnoccupiedThisHourLast)

	// lit room at an hour that is usually busy
	target, level := e.ComputeTargetTemp(in)
	assert.Equal(t, Default, level)
	assert.Equal(t, uint8(17), target)

	in.Hour = 0
	p = e.Evaluate(in)
	assert.Equal(t, 0, p.HoursLessOccupiedThanThis)
	assert.True(t, p.UnoccupiedThisHourLast)

	in.Hour = 23
	p = e.Evaluate(in)
	assert.Equal(t, 0, p.HoursLessOccupiedThanNext, "next hour wraps to midnight")
	assert.False(t, p.NotLikelyOccupiedSoon, "busy hour, not dark")
}

func TestTargetBounds(t *testing.T) {
	e := newEngine()
	cfg := config.Default().Targets
	occs := []occupancy.Source{
		nil,
		occupancy.Static{},
		occupancy.Static{LikelyOccupied: true, Pct: 100},
		occupancy.Static{VacancyH: 5},
		occupancy.Static{LongVacant: true, VacancyH: 30},
		occupancy.Static{LongLongVacant: true, VacancyH: 100},
	}
	for _, mode := range []state.Mode{state.Frost, state.Warm, state.Bake} {
		for frost := cfg.MinC; frost <= 12; frost++ {
			for warm := frost; warm <= 30; warm++ {
				for _, occ := range occs {
					for flags := 0; flags < 16; flags++ {
						in := Inputs{
							Mode: mode, FrostC: frost, WarmC: warm, Occupancy: occ,
							Schedule:    ScheduleState{OnNow: flags&1 != 0, OnSoon: flags&2 != 0},
							RecentUIUse: flags&4 != 0,
						}
						if flags&8 != 0 {
							in.DarkMinutes, in.RoomDark = 250, true
						}
						target, _ := e.ComputeTargetTemp(in)
						require.GreaterOrEqual(t, target, frost)
						require.LessOrEqual(t, int(target), int(warm)+int(cfg.BakeUpliftC))
						require.LessOrEqual(t, target, cfg.MaxC)
						if mode != state.Bake {
							require.LessOrEqual(t, target, warm)
						}
					}
				}
			}
		}
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	e := newEngine()
	st := stats.New(nvstore.NewMemStore(), 3, nil)
	st.Sample(stats.Occupancy, 30)
	require.NoError(t, st.CommitHour(10))

	in := warmInputs(18, occupancy.Static{VacancyH: 3})
	in.Stats = st
	in.DarkMinutes = 130
	in.RoomTempC16 = 17 * 16
	in.RoomTempValid = true
	in.ValvePC = 60
	in.ValveReallyOpen = true

	assert.Equal(t, e.Compute(in), e.Compute(in))
}

func TestCallingForHeat(t *testing.T) {
	e := newEngine()
	in := warmInputs(18, occupancy.Static{LikelyOccupied: true})
	in.RoomTempValid = true
	in.RoomTempC16 = 17*16 + 8
	in.ValvePC = 50
	in.ValveReallyOpen = true

	ts := e.Compute(in)
	assert.True(t, ts.UnderTarget)
	assert.True(t, ts.CallingForHeat)

	in.ValvePC = 10
	assert.False(t, e.Compute(in).CallingForHeat)

	in.ValvePC = 50
	in.ValveReallyOpen = false
	assert.False(t, e.Compute(in).CallingForHeat)

	in.ValveReallyOpen = true
	in.RoomTempC16 = 19 * 16
	ts = e.Compute(in)
	assert.False(t, ts.UnderTarget)
	assert.False(t, ts.CallingForHeat)

	in.RoomTempValid = false
	assert.False(t, e.Compute(in).UnderTarget)
}
