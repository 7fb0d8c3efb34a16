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

package internal

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/antst/otrvhub/internal/boiler"
	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/metrics"
	"github.com/antst/otrvhub/internal/nvstore"
	"github.com/antst/otrvhub/internal/safe_mqtt"
	"github.com/antst/otrvhub/internal/schedule"
	"github.com/antst/otrvhub/internal/scheduler"
	"github.com/antst/otrvhub/internal/sensor"
	"github.com/antst/otrvhub/internal/state"
	"github.com/antst/otrvhub/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type testNode struct {
	c      *NodeController
	client *safe_mqtt.FakeClient
	clock  *scheduler.FakeClock
	out    *boiler.FakeOutput
	temp   *sensor.FakeTemperature
	cfg    *config.Config
}

func newTestNode(t *testing.T, d Deps, mutate func(cfg *config.Config)) *testNode {
	t.Helper()
	cfg := config.Default()
	cfg.Scheduler.RandomiseStart = config.GetPTR(false)
	if mutate != nil {
		mutate(cfg)
	}

	n := &testNode{
		client: safe_mqtt.NewFakeClient(),
		clock:  scheduler.NewFakeClock(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)),
		out:    &boiler.FakeOutput{},
		temp:   &sensor.FakeTemperature{},
		cfg:    cfg,
	}
	d.Store = nvstore.NewMemStore()
	d.MQTT = n.client
	d.Clock = n.clock
	d.Output = n.out
	d.Metrics = metrics.New()
	d.Temperature = n.temp

	c, err := NewNodeController(cfg, d)
	require.NoError(t, err)
	n.c = c
	return n
}

// run steps the control loop once per second for the given number of seconds.
func (n *testNode) run(start time.Time, seconds int) {
	for i := 0; i < seconds; i++ {
		now := start.Add(time.Duration(i) * time.Second)
		n.clock.Set(now)
		n.c.loop.Step(context.Background(), now)
	}
}

func (n *testNode) control(name, payload string) int {
	return n.client.Deliver(n.cfg.MQTTConfig.ControlTopic+"/"+name, payload)
}

func TestWarmModeOpensValveAndFiresBoiler(t *testing.T) {
	n := newTestNode(t, Deps{}, func(cfg *config.Config) {
		cfg.Boiler.MinOnMinutes = config.GetPTR(uint8(5))
	})
	n.temp.Set(16 * 16)

	assert.Equal(t, 1, n.control("mode", "warm"))
	assert.Equal(t, state.Warm, n.c.mode.Mode())

	start := n.clock.Now()
	n.run(start, 5*60)

	ts := n.c.Last()
	assert.Equal(t, uint8(18), ts.TargetC)
	assert.True(t, ts.UnderTarget)
	assert.True(t, ts.CallingForHeat)
	assert.Equal(t, uint8(100), n.c.valve.PercentOpen())
	assert.True(t, n.out.State())

	line, ok := n.client.Last(n.cfg.MQTTConfig.ControlTopic + "/status/line")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(line, "=W100%@16C0;T10 04"), line)
	assert.Contains(t, line, ";C5+")

	raw, ok := n.client.Last(n.cfg.MQTTConfig.ControlTopic + "/status")
	require.True(t, ok)
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &report))
	assert.Equal(t, "W", report["mode"])
	assert.Equal(t, true, report["boiler_on"])
}

func TestFrostModeNonHubStaysOff(t *testing.T) {
	n := newTestNode(t, Deps{}, nil)
	n.temp.Set(5 * 16)

	n.run(n.clock.Now(), 3*60)

	ts := n.c.Last()
	assert.Equal(t, uint8(6), ts.TargetC)
	assert.False(t, n.c.arbiter.IsHub())
	assert.False(t, n.out.State())

	r := n.c.Status(n.clock.Now())
	assert.Equal(t, "F", r.Mode)
	assert.Zero(t, r.BoilerMinOnM)
	assert.Empty(t, r.Callers)
}

func TestStatusWithoutTemperature(t *testing.T) {
	n := newTestNode(t, Deps{}, nil)
	n.c.temp = nil

	r := n.c.Status(time.Date(2026, 1, 5, 7, 5, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(r.Line(), "=F0%@--C;T07 05"), r.Line())
}

func TestControlTopics(t *testing.T) {
	n := newTestNode(t, Deps{}, nil)

	n.control("frost", "7")
	n.control("warm", "20")
	n.control("warm", "abc")
	n.control("min_valve_pc", "30")
	n.control("setback_lockout", "3")
	n.control("min_boiler_on", "4")
	n.control("schedule/0", "06:30 08:00")
	n.control("schedule/1", "21:00")

	assert.Equal(t, uint8(7), n.c.targets.Frost())
	assert.Equal(t, uint8(20), n.c.targets.Warm())
	assert.Equal(t, uint8(30), n.c.minValve.Get())
	assert.Equal(t, uint8(3), n.c.lockout.Hours())
	assert.Equal(t, uint8(4), n.c.arbiter.MinOnMinutes())

	e, err := n.c.sched.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, schedule.Entry{On: 6*60 + 30, Off: 8 * 60}, e)
	e, err = n.c.sched.Entry(1)
	require.NoError(t, err)
	assert.Equal(t, schedule.Entry{On: 21 * 60, Off: schedule.Unset}, e)

	n.control("schedule/1", "clear")
	e, _ = n.c.sched.Entry(1)
	assert.False(t, e.IsSet())

	n.control("schedule/9", "06:00")
	n.control("frost", "99")
	assert.Equal(t, uint8(7), n.c.targets.Frost())
}

func TestLogLevelControl(t *testing.T) {
	n := newTestNode(t, Deps{}, nil)
	prev := logger.Level()
	defer logger.SetLogLevel(prev)

	n.control("log_level", "debug")
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
	n.control("log_level", "shouting")
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
	n.control("log_level", "warn")
	assert.Equal(t, zapcore.WarnLevel, logger.Level())
}

func TestModeChangesFlagManualUse(t *testing.T) {
	n := newTestNode(t, Deps{}, nil)

	n.control("mode", "bake")
	assert.Equal(t, state.Bake, n.c.mode.Mode())
	n.control("mode", "nonsense")
	assert.Equal(t, state.Bake, n.c.mode.Mode())

	n.run(n.clock.Now(), 1)
	assert.True(t, n.c.ui.Recent())
	assert.False(t, n.c.uiNudge.Load())

	n.control("mode", "frost")
	assert.Equal(t, state.Frost, n.c.mode.Mode())
}

func TestBakeEndsWhenTargetReached(t *testing.T) {
	n := newTestNode(t, Deps{}, nil)
	n.temp.Set(25 * 16)

	n.control("mode", "bake")
	n.run(n.clock.Now(), 1)

	assert.Equal(t, state.Warm, n.c.mode.Mode())
}

func TestRemoteCallForHeat(t *testing.T) {
	n := newTestNode(t, Deps{}, func(cfg *config.Config) {
		cfg.Boiler.MinOnMinutes = config.GetPTR(uint8(3))
	})

	assert.Equal(t, 1, n.client.Deliver(n.cfg.Boiler.CallForHeatTopic, `{"id":4660,"pc":80}`))
	n.run(n.clock.Now(), 1)
	assert.True(t, n.out.State())

	r := n.c.Status(n.clock.Now())
	assert.True(t, r.BoilerOn)
	assert.Contains(t, r.Callers, boiler.Caller{ID: 4660, PercentOpen: 80})
}

func TestHourlyStats(t *testing.T) {
	light := &sensor.FakeAmbientLight{Lvl: 100, Valid: true}
	n := newTestNode(t, Deps{
		AmbientLight: light,
		Humidity:     &sensor.FakeHumidity{Pc: 55, Valid: true},
	}, nil)
	n.temp.Set(20 * 16)
	n.c.mode.SetWarm(true)

	n.run(time.Date(2026, 1, 5, 10, 55, 0, 0, time.UTC), 3*60)

	v, ok := n.c.stats.Last(stats.Temperature, 10)
	require.True(t, ok)
	assert.Equal(t, stats.CompressTempC16(20*16), v)
	v, ok = n.c.stats.Last(stats.Humidity, 10)
	require.True(t, ok)
	assert.Equal(t, uint8(55), v)
	assert.Equal(t, stats.WarmHistoryDays, n.c.stats.WarmHistory(10).WarmDays())
	assert.True(t, light.CalCalled)

	msgs := n.client.Published(n.cfg.Stats.Topic)
	require.Len(t, msgs, 1)
	var hs hourStats
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Payload), &hs))
	assert.Equal(t, 10, hs.Hour)
	require.NotNil(t, hs.Humidity)
	assert.Equal(t, uint8(55), *hs.Humidity)
	require.NotNil(t, hs.Light)
	assert.Equal(t, uint8(100), *hs.Light)
}

func TestSensorsAreReadOnTheirSecond(t *testing.T) {
	light := &sensor.FakeAmbientLight{}
	n := newTestNode(t, Deps{AmbientLight: light}, nil)

	n.run(n.clock.Now(), 2*60)

	assert.Equal(t, 2, n.temp.Reads)
	assert.Equal(t, 2, light.Reads)
}

func TestOverrunResyncsValve(t *testing.T) {
	n := newTestNode(t, Deps{}, nil)

	n.c.overrunTask(context.Background(), 1)
	assert.True(t, n.c.valve.IsRecalibrating())
	assert.Equal(t, uint8(0), n.c.valve.PercentOpen())
}

func TestCloseSwitchesBoilerOff(t *testing.T) {
	n := newTestNode(t, Deps{}, nil)
	closed := false
	n.c.closers = []func() error{func() error { closed = true; return nil }}

	require.NoError(t, n.out.Set(true))
	require.NoError(t, n.c.Close())
	assert.False(t, n.out.State())
	assert.True(t, n.out.Closed)
	assert.True(t, closed)
}
