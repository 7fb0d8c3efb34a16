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

// Package broker runs an embedded MQTT broker so a hub can work without an external one.
package broker

import (
	"github.com/antst/otrvhub/internal/logger"
	"github.com/pkg/errors"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

type Broker struct {
	server *mqtt.Server
	addr   string
}

// Start listens on addr and serves in the background.
func Start(addr string) (*Broker, error) {
	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
	})

	// Allow all connections.
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, errors.Wrap(err, "broker auth hook")
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "otrvhub", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, errors.Wrapf(err, "broker listener %v", addr)
	}

	if err := server.Serve(); err != nil {
		return nil, errors.Wrap(err, "broker serve")
	}
	logger.L().Infof("Embedded MQTT broker listening on %v", addr)
	return &Broker{server: server, addr: addr}, nil
}

// Publish injects a message as the broker's own client.
func (b *Broker) Publish(topic string, payload []byte, retain bool) error {
	return b.server.Publish(topic, payload, retain, 1)
}

// Subscribe delivers messages matching filter to fn inside the broker.
func (b *Broker) Subscribe(filter string, id int, fn func(topic string, payload []byte)) error {
	return b.server.Subscribe(filter, id, func(_ *mqtt.Client, _ packets.Subscription, pk packets.Packet) {
		fn(pk.TopicName, pk.Payload)
	})
}

func (b *Broker) Close() error {
	logger.L().Infof("Stopping embedded MQTT broker on %v", b.addr)
	return b.server.Close()
}
