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
	"testing"
	"time"

	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/nvstore"
	"github.com/antst/otrvhub/internal/safe_mqtt"
	"github.com/antst/otrvhub/internal/valve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type arbiterFixture struct {
	nv     *nvstore.MemStore
	out    *FakeOutput
	minute uint8
	a      *Arbiter
}

func newFixture(t *testing.T, minOn *uint8) *arbiterFixture {
	t.Helper()
	f := &arbiterFixture{nv: nvstore.NewMemStore(), out: &FakeOutput{}, minute: 20}
	vcfg := config.NewValveConfig()
	bcfg := config.NewBoilerConfig()
	bcfg.FillDefaults("ctl")
	bcfg.MinOnMinutes = minOn
	f.a = NewArbiter(f.nv, valve.NewMinReallyOpen(f.nv, vcfg.MinReallyOpenPC), vcfg, bcfg,
		f.out, NewCallers(time.Minute), func() uint8 { return f.minute })
	return f
}

func (f *arbiterFixture) runMinutes(n int) bool {
	var on bool
	for m := 0; m < n; m++ {
		for tick := 0; tick < TicksPerMinute; tick++ {
			on = f.a.Tick(f.a.IsHub(), tick == 0)
		}
	}
	return on
}

func TestHubModeFromPersistedMinOn(t *testing.T) {
	f := newFixture(t, nil)
	assert.False(t, f.a.IsHub())
	assert.Equal(t, nvstore.Unset, f.nv.Get(nvstore.AddrMinBoilerOnMinutesInv))

	f = newFixture(t, config.GetPTR[uint8](4))
	assert.True(t, f.a.IsHub())
	assert.Equal(t, uint8(4), f.a.MinOnMinutes())

	require.NoError(t, f.a.SetMinOnMinutes(0))
	assert.False(t, f.a.IsHub())
	assert.Equal(t, nvstore.Unset, f.nv.Get(nvstore.AddrMinBoilerOnMinutesInv))
}

func TestThresholdWindows(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](4))

	f.minute = 5 // pause
	assert.Equal(t, uint8(34), f.a.Threshold(false))
	assert.Equal(t, uint8(34), f.a.Threshold(true))

	f.minute = 20 // encourage
	assert.Equal(t, uint8(25), f.a.Threshold(false))

	f.minute = 40
	assert.Equal(t, uint8(34), f.a.Threshold(false))
	assert.Equal(t, uint8(25), f.a.Threshold(true))

	f.minute = 64 + 20 // cycle repeats
	assert.Equal(t, uint8(25), f.a.Threshold(false))

	require.NoError(t, f.a.minValve.Set(50))
	assert.Equal(t, uint8(50), f.a.Threshold(false))
}

func TestCallBelowThresholdIgnored(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](4))
	assert.False(t, f.a.OnCallForHeat(7, 20))
	assert.False(t, f.a.OnCallForHeat(7, 0))
	assert.False(t, f.a.Tick(true, true))
	assert.False(t, f.out.State())
}

func TestMinimumOnTime(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](4))
	require.True(t, f.a.OnCallForHeat(7, 60))
	assert.True(t, f.a.Tick(true, true))
	assert.True(t, f.out.State())
	assert.Equal(t, uint16(4*TicksPerMinute-1), f.a.CountdownTicks())
	assert.Equal(t, uint16(7), f.a.LastCaller())

	for i := 0; i < 4*TicksPerMinute-2; i++ {
		require.True(t, f.a.Tick(true, false), "tick %d", i)
	}
	assert.False(t, f.a.Tick(true, false))
	assert.False(t, f.out.State())
	assert.Equal(t, uint8(0), f.a.QuietMinutes())
}

func TestRepeatedCallsExtendOnTime(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](4))
	f.a.OnCallForHeat(7, 60)
	f.a.OnCallForHeat(7, 60)
	f.a.Tick(true, true)
	f.runMinutes(3)
	f.a.OnCallForHeat(8, 60)
	assert.True(t, f.runMinutes(3))
	assert.Equal(t, uint16(8), f.a.LastCaller())
	assert.False(t, f.runMinutes(2))
}

func TestMinimumOffTime(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](4))
	f.a.OnCallForHeat(7, 60)
	f.a.Tick(true, true)
	assert.False(t, f.runMinutes(4))

	f.runMinutes(2)
	assert.Equal(t, uint8(2), f.a.QuietMinutes())
	require.True(t, f.a.OnCallForHeat(7, 60))
	assert.False(t, f.a.Tick(true, false), "call 2 minutes after off is rejected")

	f.runMinutes(3)
	assert.Equal(t, uint8(5), f.a.QuietMinutes())
	require.True(t, f.a.OnCallForHeat(7, 60))
	assert.True(t, f.a.Tick(true, false), "call 5 minutes after off is accepted")
}

func TestQuietMinutesSaturate(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](4))
	f.a.OnCallForHeat(7, 60)
	f.a.Tick(true, true)
	f.runMinutes(300)
	assert.Equal(t, uint8(0xFF), f.a.QuietMinutes())
}

func TestNotHubForcesOutputOff(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](4))
	f.a.OnCallForHeat(7, 60)
	assert.True(t, f.a.Tick(true, true))

	assert.False(t, f.a.Tick(false, false))
	assert.False(t, f.out.State())
	assert.False(t, f.a.IsOn())

	f = newFixture(t, nil)
	f.a.OnCallForHeat(7, 60)
	assert.False(t, f.a.Tick(false, true))
	assert.False(t, f.out.State())
}

func TestLongestMinimumOffStillFires(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](255))
	require.Equal(t, uint8(0xFF), f.a.QuietMinutes())
	require.True(t, f.a.OnCallForHeat(0x1234, 100))
	assert.True(t, f.a.Tick(true, true))
	assert.Equal(t, uint16(255*TicksPerMinute-1), f.a.CountdownTicks())
}

func TestNotHubKeepsNoState(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](4))
	f.a.OnCallForHeat(7, 60)
	require.True(t, f.a.Tick(true, true))
	assert.False(t, f.runMinutes(4))
	require.Equal(t, uint8(0), f.a.QuietMinutes())

	for m := 0; m < 3; m++ {
		f.a.Tick(false, true)
	}
	assert.Equal(t, uint8(0), f.a.QuietMinutes())

	// a call heard while not a hub is not acted on after becoming one
	f = newFixture(t, nil)
	f.a.OnCallForHeat(7, 60)
	assert.False(t, f.a.Tick(false, false))
	require.NoError(t, f.a.SetMinOnMinutes(4))
	assert.False(t, f.a.Tick(true, false))
	assert.False(t, f.out.State())
}

func TestRemoteCallForHeatOverMQTT(t *testing.T) {
	f := newFixture(t, config.GetPTR[uint8](4))
	client := safe_mqtt.NewFakeClient()
	f.a.Subscribe(client, "ctl/cfh")

	client.Deliver("ctl/cfh", `{"id":4660,"pc":60}`)
	client.Deliver("ctl/cfh", "0x0042 30")
	client.Deliver("ctl/cfh", "65535 90")
	client.Deliver("ctl/cfh", "junk")
	assert.True(t, f.a.Tick(true, true))
	assert.Equal(t, uint16(0x42), f.a.LastCaller())

	callers := f.a.Callers().List()
	require.Len(t, callers, 2)
	assert.Equal(t, Caller{ID: 0x42, PercentOpen: 30}, callers[0])
	assert.Equal(t, Caller{ID: 4660, PercentOpen: 60}, callers[1])
}

func TestParseCallForHeat(t *testing.T) {
	id, pc, err := ParseCallForHeat([]byte(` {"id": 12, "pc": 100} `))
	require.NoError(t, err)
	assert.Equal(t, uint16(12), id)
	assert.Equal(t, uint8(100), pc)

	id, pc, err = ParseCallForHeat([]byte("0xffee 5"))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFEE), id)
	assert.Equal(t, uint8(5), pc)

	for _, bad := range []string{"", "12", "12 101", `{"id":1}`, `{"id":70000,"pc":1}`, "x 1", "1 2 3"} {
		_, _, err := ParseCallForHeat([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestCallersExpire(t *testing.T) {
	c := NewCallers(50 * time.Millisecond)
	c.Heard(1, 30)
	c.Heard(1, 40)
	assert.Equal(t, 1, c.Count())
	assert.Equal(t, []Caller{{ID: 1, PercentOpen: 40}}, c.List())

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, c.Count())
}

func TestMQTTOutputPublishesChanges(t *testing.T) {
	client := safe_mqtt.NewFakeClient()
	out := NewMQTTOutput("ctl/boiler/ch_enable", client)

	require.NoError(t, out.Set(true))
	require.NoError(t, out.Set(true))
	require.NoError(t, out.Set(false))
	require.NoError(t, out.Close())

	ps := client.Published("ctl/boiler/ch_enable")
	require.Len(t, ps, 2)
	assert.Equal(t, "1", ps[0].Payload)
	assert.True(t, ps[0].Retained)
	assert.Equal(t, "0", ps[1].Payload)
}

func TestNewOutput(t *testing.T) {
	cfg := config.NewBoilerConfig()
	cfg.FillDefaults("ctl")

	out, err := NewOutput(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &FakeOutput{}, out)

	cfg.Output = config.BoilerOutputMQTT
	_, err = NewOutput(cfg, nil)
	assert.Error(t, err)
	out, err = NewOutput(cfg, safe_mqtt.NewFakeClient())
	require.NoError(t, err)
	assert.IsType(t, &MQTTOutput{}, out)

	cfg.Output = "relay"
	_, err = NewOutput(cfg, nil)
	assert.Error(t, err)
}
