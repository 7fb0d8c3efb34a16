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

package safe_mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/antst/otrvhub/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	reconnectInterval = 2 * time.Second
	publishTimeout    = 5 * time.Second
	QoS               = 1
)

// MqttClient is bridge between our app and MQTT
type MqttClient interface {
	SafePublish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	SafeSubscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	SafeUnsubscribe(topics ...string) mqtt.Token
	Close()
}

type mqttClient struct {
	mutex sync.Mutex
	mqtt  mqtt.Client
}

var (
	connectHandler = func(client mqtt.Client) {
		or := client.OptionsReader()
		logger.L().Infof("Connected to MQTT broker: %v as %s", or.Servers(), or.ClientID())
	}

	connectLostHandler = func(client mqtt.Client, err error) {
		logger.L().Warnf("Connection to MQTT broker lost: %v", err)
	}
)

// ClientID returns prefix followed by a random suffix, unique per process start.
func ClientID(prefix string) string {
	return prefix + uuid.New().String()
}

// Connect dials the broker, retrying until it succeeds or ctx is done. Once connected
// paho reconnects by itself and restores subscriptions.
func Connect(ctx context.Context, url, clientID string) (MqttClient, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(url).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetResumeSubs(true).
		SetMaxReconnectInterval(reconnectInterval)

	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := mqtt.NewClient(opts)
	if err := connectWithRetry(ctx, client); err != nil {
		return nil, err
	}

	return &mqttClient{
		mqtt: client,
	}, nil
}

func connectWithRetry(ctx context.Context, client mqtt.Client) error {
	for {
		token := client.Connect()
		if token.Wait() && token.Error() == nil {
			return nil
		}
		logger.L().Warnf("Connection failed, retrying in %v: %v", reconnectInterval, token.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectInterval):
		}
	}
}

func (m *mqttClient) SafePublish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.mqtt.Publish(topic, qos, retained, payload)
}

func (m *mqttClient) SafeSubscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.mqtt.Subscribe(topic, qos, callback)
}

func (m *mqttClient) SafeUnsubscribe(topics ...string) mqtt.Token {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.mqtt.Unsubscribe(topics...)
}

func (m *mqttClient) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.mqtt.Disconnect(250)
}

// Publish sends payload and logs a failure; it waits at most publishTimeout so a dead
// broker never stalls the control loop for long.
func Publish(c MqttClient, topic string, retained bool, payload interface{}) bool {
	token := c.SafePublish(topic, QoS, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		logger.L().Warnf("Publish to `%v` timed out", topic)
		return false
	}
	if err := token.Error(); err != nil {
		logger.L().Errorf("Publish to `%v` failed: %v", topic, err)
		return false
	}
	return true
}

// Subscribe subscribes and logs a failure.
func Subscribe(c MqttClient, topic string, callback mqtt.MessageHandler) bool {
	token := c.SafeSubscribe(topic, QoS, callback)
	if token.WaitTimeout(publishTimeout) && token.Error() == nil {
		return true
	}
	logger.L().Errorf("Subscribe to `%v` failed: %v", topic, token.Error())
	return false
}
