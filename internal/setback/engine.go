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

// Package setback decides the room target temperature from the operating mode, schedule,
// occupancy, darkness and the hourly occupancy history.
package setback

import (
	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/occupancy"
	"github.com/antst/otrvhub/internal/state"
	"github.com/antst/otrvhub/internal/stats"
)

// Level is the size class of a setback below the warm target.
type Level uint8

const (
	None Level = iota
	Default
	Eco
	Full
)

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Default:
		return "default"
	case Eco:
		return "eco"
	case Full:
		return "full"
	}
	return "unknown"
}

// ScheduleState is the schedule as seen at the current minute.
type ScheduleState struct {
	OnNow  bool
	OnSoon bool
}

// History is the read side of the hourly statistics used by the decision.
type History interface {
	Last(m stats.Metric, hour uint8) (uint8, bool)
	Smoothed(m stats.Metric, hour uint8) (uint8, bool)
	CountBelow(m stats.Metric, ref uint8) int
}

// Inputs is everything the decision depends on. Optional capabilities are nil when the
// node lacks them.
type Inputs struct {
	Mode     state.Mode
	FrostC   uint8
	WarmC    uint8
	Schedule ScheduleState

	Occupancy occupancy.Source
	Stats     History
	Hour      uint8

	RecentUIUse    bool
	SetbackLockout bool

	// Ambient light; DarkMinutes saturates at 255.
	DarkMinutes uint8
	RoomDark    bool

	RoomTempC16   int
	RoomTempValid bool

	ValvePC         uint8
	ValveReallyOpen bool
}

// TargetState is the computed demand.
type TargetState struct {
	TargetC        uint8
	SetbackC       uint8
	Level          Level
	UnderTarget    bool
	CallingForHeat bool
	// CancelBake asks the caller to end bake as the target has been reached.
	CancelBake bool
}

// Predicates are the named intermediate facts of the warm-mode decision.
type Predicates struct {
	LongVacant      bool
	LongLongVacant  bool
	LikelyOccupied  bool
	LikelyVacantNow bool
	VacancyH        uint8
	EcoBias         bool
	EcoTemperature  bool
	ComfortTemp     bool
	DarkForHours    bool

	// Hours whose smoothed occupancy is below that of this and the next hour.
	HoursLessOccupiedThanThis int
	HoursLessOccupiedThanNext int
	OccupiedSoonThreshold     int
	NotLikelyOccupiedSoon     bool
	// Last recorded (not smoothed) occupancy of this hour was zero.
	UnoccupiedThisHourLast bool

	LightsOffLong bool
	Vetoed        bool
}

// Engine computes targets. It holds only configuration, so calls are pure.
type Engine struct {
	targets config.TargetsConfig
	setback config.SetbackConfig
	// valve opening needed before a local call for heat is raised
	callForHeatPC uint8
}

func NewEngine(t *config.TargetsConfig, s *config.SetbackConfig, v *config.ValveConfig) *Engine {
	return &Engine{targets: *t, setback: *s, callForHeatPC: v.SaferOpenPC}
}

var noOccupancySensing = occupancy.Static{LikelyOccupied: true}

func (e *Engine) isEcoTemperature(c uint8) bool     { return c <= e.targets.EcoMaxC }
func (e *Engine) isComfortTemperature(c uint8) bool { return c >= e.targets.ComfortMinC }

// Evaluate derives the warm-mode predicates from in.
func (e *Engine) Evaluate(in Inputs) Predicates {
	occ := in.Occupancy
	if occ == nil {
		occ = noOccupancySensing
	}
	p := Predicates{
		LongLongVacant: occ.IsLongLongVacant(),
		LikelyOccupied: occ.IsLikelyOccupied(),
		VacancyH:       occ.VacancyHours(),
		EcoBias:        in.WarmC <= e.targets.ScaleMidC(),
		EcoTemperature: e.isEcoTemperature(in.WarmC),
		ComfortTemp:    e.isComfortTemperature(in.WarmC),
		DarkForHours:   in.DarkMinutes > e.setback.DarkForHoursMinutes,
	}
	p.LongVacant = p.LongLongVacant || occ.IsLongVacant()
	p.LikelyVacantNow = p.LongVacant || occ.IsLikelyUnoccupied()

	p.OccupiedSoonThreshold = int(e.setback.OccupiedSoonHours)
	lightsOff := e.setback.LightsOffMinutes
	if p.EcoBias {
		p.OccupiedSoonThreshold = int(e.setback.OccupiedSoonHoursEco)
		lightsOff = e.setback.LightsOffMinutesEco
	}
	p.LightsOffLong = in.DarkMinutes > lightsOff

	if in.Stats != nil {
		hour := in.Hour % stats.HoursPerDay
		next := (hour + 1) % stats.HoursPerDay
		this, _ := in.Stats.Smoothed(stats.Occupancy, hour)
		nxt, _ := in.Stats.Smoothed(stats.Occupancy, next)
		p.HoursLessOccupiedThanThis = in.Stats.CountBelow(stats.Occupancy, this)
		p.HoursLessOccupiedThanNext = in.Stats.CountBelow(stats.Occupancy, nxt)
		if last, ok := in.Stats.Last(stats.Occupancy, hour); ok && last == 0 {
			p.UnoccupiedThisHourLast = true
		}
	}

	p.NotLikelyOccupiedSoon = p.LongLongVacant ||
		(p.LikelyVacantNow &&
			p.HoursLessOccupiedThanThis < p.OccupiedSoonThreshold &&
			(p.DarkForHours || p.HoursLessOccupiedThanNext < p.OccupiedSoonThreshold+1))

	p.Vetoed = in.Schedule.OnNow || in.RecentUIUse
	return p
}

// SelectLevel picks the warm-mode setback from the predicates. Rules are tried in order
// and the first match wins.
func (e *Engine) SelectLevel(p Predicates, in Inputs) Level {
	if in.SetbackLockout {
		return None
	}
	// A long vacant eco-biased room always gets the deepest setback.
	if p.EcoBias && p.LongVacant {
		return Full
	}

	eligible := p.LongVacant ||
		(!p.Vetoed && (p.NotLikelyOccupiedSoon ||
			p.LightsOffLong ||
			(p.EcoBias && p.VacancyH > 0 && p.UnoccupiedThisHourLast)))
	if !eligible {
		return None
	}

	litAndUsuallyOccupied := !p.LongVacant && !in.RoomDark &&
		p.HoursLessOccupiedThanThis > int(e.setback.LitOccupiedHours)
	occupiedSoonByDay := !p.LongVacant && !p.DarkForHours &&
		p.HoursLessOccupiedThanNext >= p.OccupiedSoonThreshold-1
	scheduleSoon := !p.LongVacant && in.Schedule.OnSoon
	if p.ComfortTemp || p.LikelyOccupied || litAndUsuallyOccupied || occupiedSoonByDay || scheduleSoon {
		return Default
	}

	fullHours := e.setback.FullSetbackHours
	darkMinutes := uint16(fullHours) * 60
	if darkMinutes > 254 {
		darkMinutes = 254
	}
	longDarkAndVacant := uint16(in.DarkMinutes) > darkMinutes && p.VacancyH >= fullHours
	if p.EcoBias && (p.LongLongVacant || (p.NotLikelyOccupiedSoon && (p.EcoTemperature || longDarkAndVacant))) {
		return Full
	}
	return Eco
}

func (e *Engine) setbackC(l Level) uint8 {
	switch l {
	case Default:
		return e.setback.DefaultC
	case Eco:
		return e.setback.EcoC
	case Full:
		return e.setback.FullC
	}
	return 0
}

func subFloor(a, b, floor uint8) uint8 {
	if a < b || a-b < floor {
		return floor
	}
	return a - b
}

// ComputeTargetTemp returns the target temperature and, in warm mode, the setback level.
func (e *Engine) ComputeTargetTemp(in Inputs) (uint8, Level) {
	frost, warm := in.FrostC, in.WarmC
	if warm < frost {
		warm = frost
	}

	var target uint8
	level := None
	switch in.Mode {
	case state.Frost:
		target = frost
		longVacant := in.Occupancy != nil && (in.Occupancy.IsLongVacant() || in.Occupancy.IsLongLongVacant())
		if in.Schedule.OnSoon && !longVacant && !in.RecentUIUse {
			offset := e.setback.PreWarmC
			if e.isEcoTemperature(warm) {
				offset = e.setback.PreWarmEcoC
			}
			if pre := subFloor(warm, offset, frost); pre > frost {
				target = pre
			}
		}
	case state.Bake:
		up := uint16(warm) + uint16(e.targets.BakeUpliftC)
		if up > uint16(e.targets.MaxC) {
			up = uint16(e.targets.MaxC)
		}
		target = uint8(up)
	default:
		level = e.SelectLevel(e.Evaluate(in), in)
		target = subFloor(warm, e.setbackC(level), frost)
	}

	if target < e.targets.MinC {
		target = e.targets.MinC
	}
	if target > e.targets.MaxC {
		target = e.targets.MaxC
	}
	return target, level
}

// Compute is ComputeTargetTemp plus the derived heat demand.
func (e *Engine) Compute(in Inputs) TargetState {
	target, level := e.ComputeTargetTemp(in)
	ts := TargetState{TargetC: target, Level: level}
	if in.Mode == state.Warm && in.WarmC > target {
		ts.SetbackC = in.WarmC - target
	}

	ts.UnderTarget = in.RoomTempValid && int(target) >= in.RoomTempC16>>4
	ts.CancelBake = in.Mode == state.Bake && in.RoomTempValid && !ts.UnderTarget
	ts.CallingForHeat = ts.UnderTarget && in.ValvePC >= e.callForHeatPC && in.ValveReallyOpen
	return ts
}
