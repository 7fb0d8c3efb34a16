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

// Package scheduler runs the node's fixed per-second task table: it sleeps to each second
// boundary while polling for I/O, keeps the minute counter, gives every task a deadline
// inside the tick and recovers from ticks that overrun.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/nvstore"

	"go.uber.org/zap"
)

// Seconds within the minute at which the fixed tasks run.
const (
	SecondMinute      = 0
	SecondReseed      = 2
	SecondSupply      = 4
	SecondStatsTXMin  = 6
	SecondStatsTXMax  = 22
	SecondHumidity    = 50
	SecondLight       = 52
	SecondTemperature = 54
	SecondControl     = 56
	SecondStats       = 58

	SecondsPerMinute = 60
)

// StatsPhase says what the stats task should do this minute.
type StatsPhase uint8

const (
	NoSample StatsPhase = iota
	// PreSample takes an early sub-sample half way through the hour.
	PreSample
	// FullSample takes the final sub-sample and commits the hour.
	FullSample
)

// Tick describes the current tick to the tasks.
type Tick struct {
	Now         time.Time
	Second      uint8
	MinuteCount uint8
	// MinuteBoundary is true on the first tick of a minute.
	MinuteBoundary bool
	Conserve       bool
	RunAll         bool
	StatsPhase     StatsPhase
}

func (t Tick) Hour() uint8         { return uint8(t.Now.Hour()) }
func (t Tick) MinuteOfHour() uint8 { return uint8(t.Now.Minute()) }
func (t Tick) MinuteOfDay() uint16 { return uint16(t.Now.Hour()*60 + t.Now.Minute()) }

// Conditions are the node facts the scheduler needs to decide how much work to do.
type Conditions struct {
	BatteryLow     bool
	Warm           bool
	LongVacant     bool
	BoilerOn       bool
	CallingForHeat bool
}

// Conserve is true when nothing needs heat and the battery is low, the unit is not in
// warm mode or the room has long been vacant.
func (c Conditions) Conserve() bool {
	return (c.BatteryLow || !c.Warm || c.LongVacant) && !c.BoilerOn && !c.CallingForHeat
}

// TaskFunc is one entry of the dispatch table.
type TaskFunc func(ctx context.Context, t Tick)

// Tasks is the fixed dispatch table. Nil entries are skipped.
type Tasks struct {
	// PollIO runs repeatedly while waiting for the next second.
	PollIO func(ctx context.Context)
	// Conditions is sampled at the start of each minute.
	Conditions func() Conditions

	Minute      TaskFunc
	EndOfHour   TaskFunc
	UI          TaskFunc
	Reseed      TaskFunc
	Supply      TaskFunc
	StatsTX     TaskFunc
	Humidity    TaskFunc
	Light       TaskFunc
	Temperature TaskFunc
	Control     TaskFunc
	Stats       TaskFunc
	Boiler      TaskFunc
	// Overrun runs after a tick that spilled into the next second.
	Overrun func(ctx context.Context, count uint8)
}

type Scheduler struct {
	cfg   config.SchedulerConfig
	clock Clock
	nv    nvstore.Store
	tasks Tasks
	rnd   *rand.Rand
	log   *zap.SugaredLogger

	second      uint8
	minuteCount uint8
	statsTX     uint8
	conserve    bool
	runAll      bool
	last        time.Time
	expect      time.Time
}

func New(cfg *config.SchedulerConfig, clock Clock, nv nvstore.Store, tasks Tasks, rnd *rand.Rand) *Scheduler {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Scheduler{
		cfg:     *cfg,
		clock:   clock,
		nv:      nv,
		tasks:   tasks,
		rnd:     rnd,
		log:     logger.Named("scheduler"),
		statsTX: SecondStatsTXMin,
		runAll:  true,
	}
	if cfg.RandomiseStart != nil && *cfg.RandomiseStart {
		r := uint8(rnd.Intn(256))
		s.second = r % SecondsPerMinute
		s.minuteCount = (r >> 6) & 3
		s.log.Debugf("Randomised start at second %d minute %d", s.second, s.minuteCount)
	}
	return s
}

// MinuteCount is the free-running minute counter.
func (s *Scheduler) MinuteCount() uint8 { return s.minuteCount }

// Second is the position within the current minute cycle.
func (s *Scheduler) Second() uint8 { return s.second }

// Overruns is the persisted count of overrunning ticks, saturating at 255.
func (s *Scheduler) Overruns() uint8 {
	return nvstore.GetInverted(s.nv, nvstore.AddrOverrunCounterInv)
}

// Run executes ticks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("Control loop started")
	for {
		now, err := s.waitNextSecond(ctx)
		if err != nil {
			s.log.Info("Control loop stopped")
			return err
		}
		s.Step(ctx, now)
	}
}

// waitNextSecond sleeps until the wall clock reaches the next whole second, polling for
// I/O at most every PollInterval.
func (s *Scheduler) waitNextSecond(ctx context.Context) (time.Time, error) {
	now := s.clock.Now()
	next := now.Truncate(time.Second).Add(time.Second)
	for now.Before(next) {
		d := next.Sub(now)
		if d > s.cfg.PollInterval {
			d = s.cfg.PollInterval
		}
		if err := s.clock.Sleep(ctx, d); err != nil {
			return now, err
		}
		if s.tasks.PollIO != nil {
			s.tasks.PollIO(ctx)
		}
		if err := ctx.Err(); err != nil {
			return now, err
		}
		now = s.clock.Now()
	}
	return now, nil
}

// advance moves the cycle on by the wall seconds elapsed since the previous tick. It
// reports whether the minute ended and how far past the expected second the tick landed.
func (s *Scheduler) advance(now time.Time) (bool, time.Duration) {
	sec := now.Truncate(time.Second)
	if s.last.IsZero() {
		s.last = sec
		return true, 0
	}
	var skipped time.Duration
	if !s.expect.IsZero() && sec.After(s.expect) {
		skipped = sec.Sub(s.expect)
	}
	elapsed := int(sec.Sub(s.last) / time.Second)
	if elapsed < 1 {
		elapsed = 1
	}
	s.last = sec

	n := int(s.second) + elapsed
	wraps := n / SecondsPerMinute
	s.second = uint8(n % SecondsPerMinute)
	s.minuteCount += uint8(wraps)
	return wraps > 0, skipped
}

func (s *Scheduler) budget(start time.Time) time.Duration {
	deadline := start.Truncate(time.Second).Add(time.Duration(s.cfg.DeadlineFraction * float64(time.Second)))
	return deadline.Sub(s.clock.Now())
}

func (s *Scheduler) run(ctx context.Context, task TaskFunc, t Tick) {
	if task == nil {
		return
	}
	tctx, cancel := context.WithTimeout(ctx, s.budget(t.Now))
	defer cancel()
	task(tctx, t)
}

func statsPhase(minute uint8, batteryLow bool) StatsPhase {
	switch {
	case minute >= 26 && minute <= 29 && !batteryLow:
		return PreSample
	case minute >= 56:
		return FullSample
	}
	return NoSample
}

// Step runs one tick for the wall clock time now. The first tick after a start, and any
// tick that crosses the end of the minute cycle, runs the per-minute tasks.
func (s *Scheduler) Step(ctx context.Context, now time.Time) {
	boundary, skipped := s.advance(now)
	if skipped > 0 {
		s.overrun(ctx, "Tick at second %d arrived %v late", s.second, skipped)
	}

	var cond Conditions
	if boundary {
		if s.tasks.Conditions != nil {
			cond = s.tasks.Conditions()
		}
		s.conserve = cond.Conserve()
		s.runAll = !s.conserve || s.minuteCount&3 == 0 || s.minuteCount < 4
		s.statsTX = SecondStatsTXMin + uint8(s.rnd.Intn(SecondStatsTXMax-SecondStatsTXMin+1))
	}

	t := Tick{
		Now:            now,
		Second:         s.second,
		MinuteCount:    s.minuteCount,
		MinuteBoundary: boundary,
		Conserve:       s.conserve,
		RunAll:         s.runAll,
	}

	if boundary {
		s.run(ctx, s.tasks.Minute, t)
		if t.MinuteOfHour() == 59 {
			s.run(ctx, s.tasks.EndOfHour, t)
		}
	}
	s.run(ctx, s.tasks.UI, t)

	switch t.Second {
	case SecondReseed:
		s.run(ctx, s.tasks.Reseed, t)
	case SecondSupply:
		s.run(ctx, s.tasks.Supply, t)
	case s.statsTX:
		if t.RunAll {
			s.run(ctx, s.tasks.StatsTX, t)
		}
	case SecondHumidity:
		if t.RunAll {
			s.run(ctx, s.tasks.Humidity, t)
		}
	case SecondLight:
		s.run(ctx, s.tasks.Light, t)
	case SecondTemperature:
		s.run(ctx, s.tasks.Temperature, t)
	case SecondControl:
		s.run(ctx, s.tasks.Control, t)
	case SecondStats:
		batteryLow := false
		if s.tasks.Conditions != nil {
			batteryLow = s.tasks.Conditions().BatteryLow
		}
		t.StatsPhase = statsPhase(t.MinuteOfHour(), batteryLow)
		if t.StatsPhase != NoSample {
			s.run(ctx, s.tasks.Stats, t)
		}
	}

	s.run(ctx, s.tasks.Boiler, t)
	s.checkOverrun(ctx, now)
}

// checkOverrun catches a tick whose tasks ran into the next second and sets the second
// the following tick is expected at.
func (s *Scheduler) checkOverrun(ctx context.Context, start time.Time) {
	end := s.clock.Now()
	s.expect = end.Truncate(time.Second).Add(time.Second)
	if end.Truncate(time.Second).Equal(start.Truncate(time.Second)) {
		return
	}
	s.overrun(ctx, "Tick at second %d overran by %v", s.second, end.Sub(start.Truncate(time.Second)))
}

// overrun counts a lost tick and lets the owner resynchronise tick-aligned devices.
func (s *Scheduler) overrun(ctx context.Context, format string, args ...interface{}) {
	count, err := nvstore.IncrementInverted(s.nv, nvstore.AddrOverrunCounterInv)
	if err != nil {
		s.log.Errorf("Cannot persist overrun counter: %v", err)
	}
	s.log.Warnf(format+" (total %d)", append(args, count)...)
	if s.tasks.Overrun != nil {
		s.tasks.Overrun(ctx, count)
	}
}
