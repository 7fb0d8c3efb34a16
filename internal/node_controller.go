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
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antst/otrvhub/internal/boiler"
	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
	"github.com/antst/otrvhub/internal/metrics"
	"github.com/antst/otrvhub/internal/nvstore"
	"github.com/antst/otrvhub/internal/occupancy"
	"github.com/antst/otrvhub/internal/safe_mqtt"
	"github.com/antst/otrvhub/internal/schedule"
	"github.com/antst/otrvhub/internal/scheduler"
	"github.com/antst/otrvhub/internal/sensor"
	"github.com/antst/otrvhub/internal/setback"
	"github.com/antst/otrvhub/internal/state"
	"github.com/antst/otrvhub/internal/stats"
	"github.com/antst/otrvhub/internal/valve"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Deps are the collaborators of a NodeController. Nil sensors are absent from the node.
type Deps struct {
	Store   nvstore.Store
	MQTT    safe_mqtt.MqttClient
	Clock   scheduler.Clock
	Output  boiler.Output
	Metrics *metrics.Metrics
	Rand    *rand.Rand

	Temperature  sensor.Temperature
	AmbientLight sensor.AmbientLight
	Humidity     sensor.Humidity
	Supply       sensor.Supply
	Motion       sensor.Motion
}

// NodeController is the control loop of one node: the fixed task table run by the
// scheduler, and the MQTT control surface.
type NodeController struct {
	cfg  *config.Config
	nv   nvstore.Store
	mqtt safe_mqtt.MqttClient
	log  *zap.SugaredLogger
	rnd  *rand.Rand

	mode     state.ModeState
	ui       state.UIState
	uiNudge  atomic.Bool
	targets  *setback.Targets
	lockout  *setback.Lockout
	engine   *setback.Engine
	stats    *stats.Store
	occ      *occupancy.Tracker
	sched    *schedule.Schedule
	minValve *valve.MinReallyOpen
	valve    valve.Driver
	arbiter  *boiler.Arbiter
	callers  *boiler.Callers
	metrics  *metrics.Metrics
	loop     *scheduler.Scheduler

	temp     sensor.Temperature
	light    sensor.AmbientLight
	humidity sensor.Humidity
	supply   sensor.Supply
	motion   sensor.Motion

	lock        sync.Mutex
	last        setback.TargetState
	preSampledH int
	committedH  int
	sentH       int

	closers []func() error
}

func NewNodeController(cfg *config.Config, d Deps) (*NodeController, error) {
	if d.Store == nil {
		d.Store = nvstore.NewMemStore()
	}
	if d.Clock == nil {
		d.Clock = scheduler.RealClock()
	}
	if d.Output == nil {
		d.Output = &boiler.FakeOutput{}
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	c := &NodeController{
		cfg:         cfg,
		nv:          d.Store,
		mqtt:        d.MQTT,
		log:         logger.Named("node"),
		rnd:         d.Rand,
		targets:     setback.NewTargets(d.Store, cfg.Targets),
		lockout:     setback.NewLockout(d.Store),
		engine:      setback.NewEngine(cfg.Targets, cfg.Setback, cfg.Valve),
		stats:       stats.New(d.Store, cfg.Stats.SmoothShift, rand.New(rand.NewSource(d.Rand.Int63()))),
		occ:         occupancy.NewTracker(cfg.Occupancy),
		sched:       schedule.New(d.Store, cfg.Schedule),
		minValve:    valve.NewMinReallyOpen(d.Store, cfg.Valve.MinReallyOpenPC),
		callers:     boiler.NewCallers(cfg.Boiler.CallerTTL),
		metrics:     d.Metrics,
		temp:        d.Temperature,
		light:       d.AmbientLight,
		humidity:    d.Humidity,
		supply:      d.Supply,
		motion:      d.Motion,
		preSampledH: -1,
		committedH:  -1,
		sentH:       -1,
	}
	c.valve = valve.NewModelled(cfg.Valve, c.minValve, d.MQTT)

	if err := c.sched.Seed(cfg.Schedule.Entries); err != nil {
		return nil, errors.WithMessage(err, "seed schedule")
	}

	c.loop = scheduler.New(cfg.Scheduler, d.Clock, d.Store, c.tasks(), d.Rand)
	c.arbiter = boiler.NewArbiter(d.Store, c.minValve, cfg.Valve, cfg.Boiler, d.Output, c.callers, c.loop.MinuteCount)
	c.arbiter.Observe(c.metrics.CallForHeat)

	if l, ok := c.light.(interface{ OnLightsOn(func()) }); ok {
		l.OnLightsOn(c.occ.MarkAsPossiblyOccupied)
	}

	if c.mqtt != nil {
		c.setupMQTTSubscriptions()
	}

	c.log.Infof("Node ready: frost %dC warm %dC, hub %v, occupancy sensing %v",
		c.targets.Frost(), c.targets.Warm(), c.arbiter.IsHub(), c.hasOccupancySensing())
	return c, nil
}

func (c *NodeController) setupMQTTSubscriptions() {
	c.arbiter.Subscribe(c.mqtt, c.cfg.Boiler.CallForHeatTopic)
	controlTopic := c.cfg.MQTTConfig.ControlTopic
	for _, name := range controlTopics {
		safe_mqtt.Subscribe(c.mqtt, controlTopic+"/"+name, c.controlUpdateHandler)
	}
}

func (c *NodeController) tasks() scheduler.Tasks {
	t := scheduler.Tasks{
		Conditions: c.conditions,
		Minute:     c.minuteTask,
		EndOfHour:  c.endOfHourTask,
		UI:         c.uiTask,
		Reseed:     c.reseedTask,
		StatsTX:    c.statsTXTask,
		Control:    c.controlTask,
		Stats:      c.statsTask,
		Boiler:     c.boilerTask,
		Overrun:    c.overrunTask,
	}
	if c.supply != nil {
		t.Supply = func(context.Context, scheduler.Tick) { c.supply.Read() }
	}
	if c.humidity != nil {
		t.Humidity = func(context.Context, scheduler.Tick) { c.humidity.Read() }
	}
	if c.light != nil {
		t.Light = func(context.Context, scheduler.Tick) { c.light.Read() }
	}
	if c.temp != nil {
		t.Temperature = func(context.Context, scheduler.Tick) { c.temp.Read() }
	}
	return t
}

// Run drives the control loop until ctx ends.
func (c *NodeController) Run(ctx context.Context) error {
	return c.loop.Run(ctx)
}

func (c *NodeController) hasOccupancySensing() bool {
	return c.motion != nil || c.light != nil
}

func (c *NodeController) conditions() scheduler.Conditions {
	c.lock.Lock()
	calling := c.last.CallingForHeat
	c.lock.Unlock()
	return scheduler.Conditions{
		BatteryLow:     c.supply != nil && c.supply.IsLow(),
		Warm:           c.mode.InWarm(),
		LongVacant:     c.hasOccupancySensing() && c.occ.IsLongVacant(),
		BoilerOn:       c.arbiter.IsOn(),
		CallingForHeat: calling,
	}
}

func (c *NodeController) minuteTask(_ context.Context, t scheduler.Tick) {
	c.mode.TickBake()
	c.ui.Tick()
	switch c.sched.Check(t.MinuteOfDay()) {
	case schedule.SwitchToWarm:
		c.log.Infof("Schedule switches to warm at %v", schedule.FormatMinute(t.MinuteOfDay()))
		c.mode.SetWarm(true)
	case schedule.SwitchToFrost:
		c.log.Infof("Schedule switches to frost at %v", schedule.FormatMinute(t.MinuteOfDay()))
		c.mode.SetWarm(false)
	}
}

func (c *NodeController) endOfHourTask(_ context.Context, _ scheduler.Tick) {
	if err := c.lockout.TickHour(); err != nil {
		c.log.Errorf("Cannot update setback lockout: %v", err)
	}
}

// uiTask applies a manual interaction flagged by the control handler.
func (c *NodeController) uiTask(_ context.Context, t scheduler.Tick) {
	if !c.uiNudge.Swap(false) {
		return
	}
	c.ui.MarkUsed()
	c.occ.MarkAsOccupied()
	ts := c.computeTarget(t.Now)
	c.log.Infof("Manual interaction: mode %v target %dC", c.mode.Mode(), ts.TargetC)
}

func (c *NodeController) reseedTask(_ context.Context, _ scheduler.Tick) {
	c.stats.Reseed(c.rnd.Int63())
}

func (c *NodeController) inputs(now time.Time) setback.Inputs {
	m := uint16(now.Hour()*60 + now.Minute())
	in := setback.Inputs{
		Mode:   c.mode.Mode(),
		FrostC: c.targets.Frost(),
		WarmC:  c.targets.Warm(),
		Schedule: setback.ScheduleState{
			OnNow:  c.sched.IsOnNow(m),
			OnSoon: c.sched.IsOnSoon(m),
		},
		Stats:           c.stats,
		Hour:            uint8(now.Hour()),
		RecentUIUse:     c.ui.Recent(),
		SetbackLockout:  c.lockout.Active(),
		ValvePC:         c.valve.PercentOpen(),
		ValveReallyOpen: c.valve.IsReallyOpen(),
	}
	if c.hasOccupancySensing() {
		in.Occupancy = c.occ
	}
	if c.light != nil {
		in.DarkMinutes = c.light.DarkMinutes()
		in.RoomDark = c.light.IsRoomDark()
	}
	if c.temp != nil {
		in.RoomTempC16, in.RoomTempValid = c.temp.C16()
	}
	return in
}

// computeTarget evaluates the target and applies its side effects on the mode.
func (c *NodeController) computeTarget(now time.Time) setback.TargetState {
	in := c.inputs(now)
	ts := c.engine.Compute(in)
	if ts.CancelBake {
		c.log.Info("Target reached, bake ends")
		c.mode.CancelBake()
	}
	c.lock.Lock()
	prev := c.last
	c.last = ts
	c.lock.Unlock()
	if prev.TargetC != ts.TargetC || prev.Level != ts.Level {
		c.log.Debugf("Target %dC (setback %v %dC), under target %v, calling for heat %v",
			ts.TargetC, ts.Level, ts.SetbackC, ts.UnderTarget, ts.CallingForHeat)
	}
	return ts
}

func (c *NodeController) controlTask(ctx context.Context, t scheduler.Tick) {
	if c.motion != nil {
		c.motion.Read()
		if c.motion.Detected() {
			c.occ.MarkAsOccupied()
		}
	}
	c.occ.Read()

	ts := c.computeTarget(t.Now)
	roomC16, roomValid := 0, false
	if c.temp != nil {
		roomC16, roomValid = c.temp.C16()
	}
	c.valve.SetTarget(ts.TargetC, roomC16, roomValid)

	if ts.CallingForHeat && c.arbiter.IsHub() {
		c.arbiter.OnCallForHeat(boiler.LocalID, c.valve.PercentOpen())
	}

	r := c.Status(t.Now)
	c.metrics.Observe(r)
	if t.RunAll {
		c.publishStatus(ctx, r)
	}
}

func (c *NodeController) boilerTask(_ context.Context, t scheduler.Tick) {
	c.arbiter.Tick(c.arbiter.IsHub(), t.MinuteBoundary)
}

func (c *NodeController) overrunTask(_ context.Context, count uint8) {
	c.log.Warnf("Resynchronising valve after overrun %d", count)
	c.valve.Resync()
}

// Last returns the most recently computed target state.
func (c *NodeController) Last() setback.TargetState {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.last
}

// Close switches the boiler off and releases what Open acquired.
func (c *NodeController) Close() error {
	err := c.arbiter.Close()
	closeAll(c.closers)
	return err
}
