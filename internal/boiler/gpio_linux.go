//go:build linux

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

package boiler

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// GPIOOutput drives the boiler relay from a GPIO line.
type GPIOOutput struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func NewGPIOOutput(chipName string, offset int, activeLow bool) (*GPIOOutput, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("otrvhub"))
	if err != nil {
		return nil, errors.Wrapf(err, "open gpio chip %v", chipName)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(offset, opts...)
	if err != nil {
		chip.Close()
		return nil, errors.Wrapf(err, "request boiler line %d", offset)
	}
	return &GPIOOutput{chip: chip, line: line}, nil
}

func (g *GPIOOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return errors.Wrap(g.line.SetValue(v), "set boiler line")
}

// Close switches the boiler off and releases the line.
func (g *GPIOOutput) Close() error {
	var first error
	if err := g.line.SetValue(0); err != nil {
		first = errors.Wrap(err, "set boiler line")
	}
	if err := g.line.Close(); err != nil && first == nil {
		first = errors.Wrap(err, "close boiler line")
	}
	if err := g.chip.Close(); err != nil && first == nil {
		first = errors.Wrap(err, "close gpio chip")
	}
	return first
}
