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

package sensor

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/safe_mqtt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultMaxAge is how long a received value stays usable without an update.
const DefaultMaxAge = 30 * time.Minute

// Value is the latest reading of one MQTT topic. Messages only update the received value;
// Read latches it so the control loop sees a stable value for the whole minute.
type Value struct {
	name   string
	cfg    *config.SensorConfig
	maxAge time.Duration
	now    func() time.Time

	lock       sync.RWMutex
	received   float64
	receivedAt time.Time
	current    float64
	valid      bool
}

func NewValue(name string, cfg *config.SensorConfig) *Value {
	return &Value{name: name, cfg: cfg, maxAge: DefaultMaxAge, now: time.Now}
}

// Subscribe starts feeding v from the configured topic.
func (v *Value) Subscribe(client safe_mqtt.MqttClient) {
	safe_mqtt.Subscribe(client, v.cfg.Topic, v.ValueUpdateHandler)
}

func (v *Value) ValueUpdateHandler(client mqtt.Client, message mqtt.Message) {
	t0, err := extractF64PlainOrJson(message, v.cfg.JSONEntry)
	if err != nil {
		logger.L().Error(err)
		return
	}
	val := t0*(*v.cfg.Scale) + (*v.cfg.Offset)
	v.lock.Lock()
	v.received = val
	v.receivedAt = v.now()
	v.lock.Unlock()
	logger.L().Debugf("Got value for sensor %s : %f", v.name, val)
}

func (v *Value) Read() {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.valid = !v.receivedAt.IsZero() && v.now().Sub(v.receivedAt) <= v.maxAge
	if v.valid {
		v.current = v.received
	}
}

func (v *Value) Get() (float64, bool) {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return v.current, v.valid
}

func (v *Value) inRange(lo, hi float64) (float64, bool) {
	f, ok := v.Get()
	if !ok || math.IsNaN(f) || f < lo || f > hi {
		return 0, false
	}
	return f, true
}

// MQTTTemperature reads degrees C.
type MQTTTemperature struct{ *Value }

func NewMQTTTemperature(cfg *config.SensorConfig) *MQTTTemperature {
	return &MQTTTemperature{NewValue("temperature", cfg)}
}

func (t *MQTTTemperature) C16() (int, bool) {
	c, ok := t.inRange(-20, 100)
	if !ok {
		return 0, false
	}
	return int(math.Round(c * 16)), true
}

// MQTTHumidity reads relative humidity in percent.
type MQTTHumidity struct{ *Value }

func NewMQTTHumidity(cfg *config.SensorConfig) *MQTTHumidity {
	return &MQTTHumidity{NewValue("humidity", cfg)}
}

func (h *MQTTHumidity) Percent() (uint8, bool) {
	f, ok := h.inRange(0, 100)
	return uint8(math.Round(f)), ok
}

// MQTTSupply reads supply voltage.
type MQTTSupply struct {
	*Value
	lowV float64
}

func NewMQTTSupply(cfg *config.SensorConfig, lowV float64) *MQTTSupply {
	return &MQTTSupply{Value: NewValue("supply", cfg), lowV: lowV}
}

// IsLow is false while no voltage is known.
func (s *MQTTSupply) IsLow() bool {
	v, ok := s.inRange(0, 60)
	return ok && v < s.lowV
}

// MQTTMotion latches any activity reported since the previous Read. Payloads are
// "on"/"off", "true"/"false" or a number where >= 0.5 means activity.
type MQTTMotion struct {
	cfg      *config.SensorConfig
	lock     sync.Mutex
	pending  bool
	detected bool
}

func NewMQTTMotion(cfg *config.SensorConfig) *MQTTMotion {
	return &MQTTMotion{cfg: cfg}
}

func (m *MQTTMotion) Subscribe(client safe_mqtt.MqttClient) {
	safe_mqtt.Subscribe(client, m.cfg.Topic, m.ValueUpdateHandler)
}

func (m *MQTTMotion) ValueUpdateHandler(client mqtt.Client, message mqtt.Message) {
	var active bool
	payload := strings.ToLower(strings.TrimSpace(string(message.Payload())))
	switch payload {
	case "on", "true":
		active = true
	case "off", "false":
	default:
		f, err := extractF64PlainOrJson(message, m.cfg.JSONEntry)
		if err != nil {
			logger.L().Error(err)
			return
		}
		active = f >= 0.5
	}
	if active {
		m.lock.Lock()
		m.pending = true
		m.lock.Unlock()
	}
}

func (m *MQTTMotion) Read() {
	m.lock.Lock()
	m.detected, m.pending = m.pending, false
	m.lock.Unlock()
}

func (m *MQTTMotion) Detected() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.detected
}
