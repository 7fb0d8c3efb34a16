//go:build !linux

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

import "github.com/pkg/errors"

// GPIOOutput is not available off Linux.
type GPIOOutput struct{}

func NewGPIOOutput(chipName string, offset int, activeLow bool) (*GPIOOutput, error) {
	return nil, errors.New("boiler: gpio output requires linux")
}

func (g *GPIOOutput) Set(on bool) error {
	return errors.New("boiler: gpio not supported")
}

func (g *GPIOOutput) Close() error {
	return nil
}
