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

// Package sensor defines the sensor contracts used by the control loop and their
// MQTT-fed implementations. Read refreshes a sensor; getters return the latched value
// and whether it is valid. Out-of-range readings are treated as absent.
package sensor

type Reader interface {
	Read()
}

// Temperature is the room temperature in 1/16 C.
type Temperature interface {
	Reader
	C16() (int, bool)
}

// AmbientLight reports light level and how long the room has been dark. Read is
// expected once a minute.
type AmbientLight interface {
	Reader
	Level() (uint8, bool)
	DarkMinutes() uint8
	IsRoomDark() bool
	// Recalibrate adapts the dark threshold to the observed daily range.
	Recalibrate(min, max uint8)
}

type Humidity interface {
	Reader
	Percent() (uint8, bool)
}

type Supply interface {
	Reader
	IsLow() bool
}

// Motion reports activity seen since the previous Read.
type Motion interface {
	Reader
	Detected() bool
}
