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
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Published is one message recorded by FakeClient.
type Published struct {
	Topic    string
	Retained bool
	Payload  string
}

// FakeClient is an in-process MqttClient for tests. Deliver dispatches to handlers whose
// subscription filter matches the topic.
type FakeClient struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published []Published
	closed    bool
}

func NewFakeClient() *FakeClient {
	return &FakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *FakeClient) SafePublish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var p string
	switch v := payload.(type) {
	case string:
		p = v
	case []byte:
		p = string(v)
	}
	f.mu.Lock()
	f.published = append(f.published, Published{Topic: topic, Retained: retained, Payload: p})
	f.mu.Unlock()
	return doneToken{}
}

func (f *FakeClient) SafeSubscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	f.handlers[topic] = callback
	f.mu.Unlock()
	return doneToken{}
}

func (f *FakeClient) SafeUnsubscribe(topics ...string) mqtt.Token {
	f.mu.Lock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	f.mu.Unlock()
	return doneToken{}
}

func (f *FakeClient) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Deliver sends payload on topic to every matching subscription; it returns the number
// of handlers called.
func (f *FakeClient) Deliver(topic, payload string) int {
	f.mu.Lock()
	var hs []mqtt.MessageHandler
	for filter, h := range f.handlers {
		if TopicMatches(filter, topic) {
			hs = append(hs, h)
		}
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(nil, &FakeMessage{TopicName: topic, Body: []byte(payload)})
	}
	return len(hs)
}

// Published returns the messages sent to topic, oldest first.
func (f *FakeClient) Published(topic string) []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Published
	for _, p := range f.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Last returns the latest payload sent to topic.
func (f *FakeClient) Last(topic string) (string, bool) {
	ps := f.Published(topic)
	if len(ps) == 0 {
		return "", false
	}
	return ps[len(ps)-1].Payload, true
}

// TopicMatches applies MQTT filter rules with + and # wildcards.
func TopicMatches(filter, topic string) bool {
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		if f == "#" {
			return true
		}
		if i >= len(ts) {
			return false
		}
		if f != "+" && f != ts[i] {
			return false
		}
	}
	return len(fs) == len(ts)
}

type doneToken struct{}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{}          { return closedChan }
func (doneToken) Error() error                   { return nil }

// FakeMessage implements mqtt.Message.
type FakeMessage struct {
	TopicName string
	Body      []byte
}

func (m *FakeMessage) Duplicate() bool   { return false }
func (m *FakeMessage) Qos() byte         { return QoS }
func (m *FakeMessage) Retained() bool    { return false }
func (m *FakeMessage) Topic() string     { return m.TopicName }
func (m *FakeMessage) MessageID() uint16 { return 0 }
func (m *FakeMessage) Payload() []byte   { return m.Body }
func (m *FakeMessage) Ack()              {}
