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
	"sync"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/safe_mqtt"
	"github.com/pkg/errors"
)

// Output is the digital actuator that fires the boiler.
type Output interface {
	Set(on bool) error
	Close() error
}

// NewOutput builds the output selected in cfg.
func NewOutput(cfg *config.BoilerConfig, client safe_mqtt.MqttClient) (Output, error) {
	switch cfg.Output {
	case config.BoilerOutputMQTT:
		if client == nil {
			return nil, errors.New("boiler: mqtt output needs an mqtt connection")
		}
		return NewMQTTOutput(cfg.CHEnableTopic, client), nil
	case config.BoilerOutputGPIO:
		return NewGPIOOutput(cfg.GPIOChip, cfg.GPIOLine, cfg.GPIOActiveLow)
	case config.BoilerOutputNone, "":
		return &FakeOutput{}, nil
	}
	return nil, errors.Errorf("boiler: unknown output `%v`", cfg.Output)
}

// MQTTOutput publishes the central heating enable flag, retained, whenever it changes.
type MQTTOutput struct {
	lock  sync.Mutex
	topic string
	mqtt  safe_mqtt.MqttClient
	state *bool
}

func NewMQTTOutput(topic string, client safe_mqtt.MqttClient) *MQTTOutput {
	return &MQTTOutput{topic: topic, mqtt: client}
}

func (b *MQTTOutput) Set(on bool) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.state != nil && *b.state == on {
		return nil
	}

	chEnable := "0"
	if on {
		chEnable = "1"
	}
	if token := b.mqtt.SafePublish(b.topic, safe_mqtt.QoS, true, chEnable); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "publish %v", b.topic)
	}
	b.state = &on
	logger.L().Debugf("Boiler ch_enable=%v published to %v", chEnable, b.topic)
	return nil
}

func (b *MQTTOutput) Close() error {
	return b.Set(false)
}

// FakeOutput records the requested states.
type FakeOutput struct {
	lock    sync.Mutex
	On      bool
	Changes int
	Closed  bool
	Err     error
}

func (f *FakeOutput) Set(on bool) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if on != f.On {
		f.Changes++
	}
	f.On = on
	return nil
}

func (f *FakeOutput) State() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.On
}

func (f *FakeOutput) Close() error {
	f.lock.Lock()
	f.Closed = true
	f.lock.Unlock()
	return nil
}
