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

// Package stats keeps one diurnal profile per metric: for every hour of the day the last
// committed value and an exponentially smoothed trend, both persisted in the node's
// settings store. Unset slots hold 0xFF.
package stats

import (
	"math/rand"

	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/nvstore"

	"github.com/pkg/errors"
)

const (
	Unset        = nvstore.Unset
	HoursPerDay  = nvstore.HoursPerDay
	MaxStatValue = 0xFE

	DefaultSmoothShift = 3
)

type Metric uint8

const (
	Temperature Metric = iota
	AmbientLight
	Occupancy
	Humidity
	metricCount
)

func (m Metric) String() string {
	switch m {
	case Temperature:
		return "temperature"
	case AmbientLight:
		return "ambient_light"
	case Occupancy:
		return "occupancy"
	case Humidity:
		return "humidity"
	}
	return "unknown"
}

// Series selects either the last-value or the smoothed series of a metric.
type Series struct {
	Metric   Metric
	Smoothed bool
}

func (sr Series) set() uint8 {
	s := uint8(sr.Metric) * 2
	if sr.Smoothed {
		s++
	}
	return s
}

const warmHistorySet = uint8(metricCount) * 2

// accumulator keeps the first (provisional) and latest (final) sub-sample of an hour.
type accumulator struct {
	first, last int
	n           uint8
}

func (a *accumulator) add(v int) {
	if a.n == 0 {
		a.first = v
		a.n = 1
		return
	}
	a.last = v
	a.n = 2
}

// mean of at most two samples, rounded; a single sample is returned as is.
func (a *accumulator) mean() int {
	if a.n == 1 {
		return a.first
	}
	return (a.first + a.last + 1) >> 1
}

// Store is the per-hour statistics store. It is not safe for concurrent use; the control
// loop owns it.
type Store struct {
	nv    nvstore.Store
	shift uint8
	rnd   *rand.Rand

	acc       [metricCount]accumulator
	warmCount int
	warmSeen  bool
}

func New(nv nvstore.Store, smoothShift uint8, rnd *rand.Rand) *Store {
	if smoothShift == 0 || smoothShift > 7 {
		smoothShift = DefaultSmoothShift
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}
	return &Store{nv: nv, shift: smoothShift, rnd: rnd}
}

// Reseed replaces the pseudo-random source used for stochastic rounding.
func (s *Store) Reseed(seed int64) {
	s.rnd.Seed(seed)
}

// Sample accumulates a sub-sample of a byte-valued metric for the current hour.
// Temperature must be sampled with SampleTempC16.
func (s *Store) Sample(m Metric, v uint8) {
	if m >= metricCount || m == Temperature {
		return
	}
	if v > MaxStatValue {
		v = MaxStatValue
	}
	s.acc[m].add(int(v))
}

// SampleTempC16 accumulates a temperature sub-sample in 1/16 C.
func (s *Store) SampleTempC16(c16 int) {
	s.acc[Temperature].add(c16)
}

// SampleWarmMode records whether the unit was in warm mode for this sub-sample.
func (s *Store) SampleWarmMode(warm bool) {
	s.warmSeen = true
	if warm {
		s.warmCount++
	} else {
		s.warmCount--
	}
}

// Pending is the number of sub-samples held for m, at most two.
func (s *Store) Pending(m Metric) int {
	if m >= metricCount {
		return 0
	}
	return int(s.acc[m].n)
}

// CommitHour folds the accumulated sub-samples into hour's slots and clears them.
func (s *Store) CommitHour(hour uint8) error {
	if hour >= HoursPerDay {
		return errors.Errorf("stats: bad hour %d", hour)
	}
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for m := Metric(0); m < metricCount; m++ {
		a := &s.acc[m]
		if a.n == 0 {
			continue
		}
		var v uint8
		if m == Temperature {
			v = CompressTempC16(a.mean())
		} else {
			v = uint8(a.mean())
		}
		keep(s.updatePair(m, hour, v))
		*a = accumulator{}
	}

	if s.warmSeen {
		h := s.WarmHistory(hour)
		h.Push(s.warmCount > 0)
		keep(s.nv.Update(nvstore.StatsAddr(warmHistorySet, hour), h.Encode()))
		s.warmCount, s.warmSeen = 0, false
	}

	if firstErr != nil {
		logger.L().Errorf("Failed to persist stats for hour %d: %v", hour, firstErr)
	}
	return firstErr
}

func (s *Store) updatePair(m Metric, hour uint8, v uint8) error {
	last := Series{Metric: m}
	smoothed := Series{Metric: m, Smoothed: true}
	if err := s.nv.Update(nvstore.StatsAddr(last.set(), hour), v); err != nil {
		return errors.WithMessagef(err, "stats %v last", m)
	}

	addr := nvstore.StatsAddr(smoothed.set(), hour)
	old := s.nv.Get(addr)
	nv := v
	if old != Unset {
		nv = Smooth(old, v, s.shift, uint8(s.rnd.Intn(256)))
	}
	return errors.WithMessagef(s.nv.Update(addr, nv), "stats %v smoothed", m)
}

// Smooth is the stochastic exponential filter ((old<<k) - old + value + r) >> k where r is
// the low k bits of rnd. Equal inputs are returned unchanged.
func Smooth(old, value, shift, rnd uint8) uint8 {
	if old == value {
		return old
	}
	mask := uint16(1)<<shift - 1
	acc := uint16(old)<<shift - uint16(old) + uint16(value) + uint16(rnd)&mask
	return uint8(acc >> shift)
}

// Query returns the hour's value in the series, false if unset.
func (s *Store) Query(sr Series, hour uint8) (uint8, bool) {
	if sr.Metric >= metricCount || hour >= HoursPerDay {
		return Unset, false
	}
	v := s.nv.Get(nvstore.StatsAddr(sr.set(), hour))
	return v, v != Unset
}

func (s *Store) Last(m Metric, hour uint8) (uint8, bool) {
	return s.Query(Series{Metric: m}, hour)
}

func (s *Store) Smoothed(m Metric, hour uint8) (uint8, bool) {
	return s.Query(Series{Metric: m, Smoothed: true}, hour)
}

// CountBelow counts hours whose smoothed value of m is below ref.
func (s *Store) CountBelow(m Metric, ref uint8) int {
	return s.CountBelowSeries(Series{Metric: m, Smoothed: true}, ref)
}

// CountBelowSeries counts hours in the series whose value is below ref; unset hours never count.
func (s *Store) CountBelowSeries(sr Series, ref uint8) int {
	n := 0
	for h := uint8(0); h < HoursPerDay; h++ {
		if v, ok := s.Query(sr, h); ok && v < ref {
			n++
		}
	}
	return n
}

func (s *Store) MinByHour(sr Series) (uint8, bool) {
	best, found := uint8(Unset), false
	for h := uint8(0); h < HoursPerDay; h++ {
		if v, ok := s.Query(sr, h); ok && (!found || v < best) {
			best, found = v, true
		}
	}
	return best, found
}

func (s *Store) MaxByHour(sr Series) (uint8, bool) {
	best, found := uint8(0), false
	for h := uint8(0); h < HoursPerDay; h++ {
		if v, ok := s.Query(sr, h); ok && (!found || v > best) {
			best, found = v, true
		}
	}
	if !found {
		return Unset, false
	}
	return best, true
}

// WarmHistory returns the warm-mode history of hour.
func (s *Store) WarmHistory(hour uint8) WarmHistory {
	if hour >= HoursPerDay {
		return WarmHistory{}
	}
	return DecodeWarmHistory(s.nv.Get(nvstore.StatsAddr(warmHistorySet, hour)))
}
