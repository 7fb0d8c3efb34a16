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
	"encoding/json"
	"strconv"
	"strings"

	"github.com/antst/otrvhub/internal/safe_mqtt"
	"github.com/pkg/errors"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type callForHeatMessage struct {
	ID *uint16 `json:"id"`
	PC *uint8  `json:"pc"`
}

// ParseCallForHeat accepts `{"id":4660,"pc":40}` or the plain form `4660 40`. Plain IDs
// may be given in hex with a 0x prefix.
func ParseCallForHeat(payload []byte) (uint16, uint8, error) {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, "{") {
		var m callForHeatMessage
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return 0, 0, errors.Wrapf(err, "call for heat `%v`", s)
		}
		if m.ID == nil || m.PC == nil {
			return 0, 0, errors.Errorf("call for heat `%v`: id and pc required", s)
		}
		if *m.PC > 100 {
			return 0, 0, errors.Errorf("call for heat `%v`: pc out of range", s)
		}
		return *m.ID, *m.PC, nil
	}

	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, errors.Errorf("call for heat `%v`: want `id pc`", s)
	}
	id, err := strconv.ParseUint(fields[0], 0, 16)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "call for heat id `%v`", fields[0])
	}
	pc, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil || pc > 100 {
		return 0, 0, errors.Errorf("call for heat `%v`: pc out of range", s)
	}
	return uint16(id), uint8(pc), nil
}

// Subscribe feeds calls for heat published on topic into the arbiter.
func (a *Arbiter) Subscribe(client safe_mqtt.MqttClient, topic string) {
	safe_mqtt.Subscribe(client, topic, a.CallForHeatHandler)
}

func (a *Arbiter) CallForHeatHandler(client mqtt.Client, message mqtt.Message) {
	id, pc, err := ParseCallForHeat(message.Payload())
	if err != nil {
		a.log.Warn(err)
		return
	}
	if id == LocalID {
		a.log.Warnf("Call for heat with reserved id %04x dropped", id)
		return
	}
	a.OnCallForHeat(id, pc)
}
