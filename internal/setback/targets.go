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
	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/nvstore"

	"github.com/pkg/errors"
)

var (
	ErrOutOfRange = errors.New("temperature out of range")
	ErrBelowFrost = errors.New("warm target below frost target")
	ErrAboveWarm  = errors.New("frost target above warm target")
)

// Targets are the user-settable frost and warm temperatures, persisted in the settings
// store. A missing or malformed stored value falls back to the configured default.
type Targets struct {
	nv  nvstore.Store
	cfg config.TargetsConfig
}

func NewTargets(nv nvstore.Store, cfg *config.TargetsConfig) *Targets {
	return &Targets{nv: nv, cfg: *cfg}
}

func (t *Targets) Config() config.TargetsConfig { return t.cfg }

func (t *Targets) inRange(c uint8) bool {
	return c >= t.cfg.MinC && c <= t.cfg.MaxC
}

func (t *Targets) stored(addr nvstore.Addr, def uint8) uint8 {
	if c := t.nv.Get(addr); c != nvstore.Unset && t.inRange(c) {
		return c
	}
	return def
}

func (t *Targets) Frost() uint8 {
	return t.stored(nvstore.AddrFrostC, t.cfg.FrostC)
}

// Warm is never below Frost.
func (t *Targets) Warm() uint8 {
	w := t.stored(nvstore.AddrWarmC, t.cfg.WarmC)
	if f := t.Frost(); w < f {
		return f
	}
	return w
}

func (t *Targets) SetFrost(c uint8) error {
	if !t.inRange(c) {
		return errors.Wrapf(ErrOutOfRange, "frost %dC", c)
	}
	if c > t.Warm() {
		return errors.Wrapf(ErrAboveWarm, "frost %dC", c)
	}
	return t.nv.Update(nvstore.AddrFrostC, c)
}

func (t *Targets) SetWarm(c uint8) error {
	if !t.inRange(c) {
		return errors.Wrapf(ErrOutOfRange, "warm %dC", c)
	}
	if c < t.Frost() {
		return errors.Wrapf(ErrBelowFrost, "warm %dC", c)
	}
	return t.nv.Update(nvstore.AddrWarmC, c)
}

func (t *Targets) IsEcoTemperature(c uint8) bool     { return c <= t.cfg.EcoMaxC }
func (t *Targets) IsComfortTemperature(c uint8) bool { return c >= t.cfg.ComfortMinC }

// HasEcoBias is true when the warm target sits in the lower half of the dial.
func (t *Targets) HasEcoBias() bool {
	return t.Warm() <= t.cfg.ScaleMidC()
}

// Lockout suppresses all setbacks for a number of hours, for example while a new
// installation is being tuned. The remaining hours survive restarts.
type Lockout struct {
	nv nvstore.Store
}

func NewLockout(nv nvstore.Store) *Lockout {
	return &Lockout{nv: nv}
}

func (l *Lockout) Hours() uint8 {
	return nvstore.GetInverted(l.nv, nvstore.AddrSetbackLockoutHoursInv)
}

func (l *Lockout) Active() bool { return l.Hours() != 0 }

func (l *Lockout) Set(hours uint8) error {
	return nvstore.UpdateInverted(l.nv, nvstore.AddrSetbackLockoutHoursInv, hours)
}

// TickHour counts the lockout down at the end of each hour.
func (l *Lockout) TickHour() error {
	if h := l.Hours(); h != 0 {
		return l.Set(h - 1)
	}
	return nil
}
