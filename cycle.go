package socmonitor

import (
	"fmt"
	"time"

	"github.com/golang/glog"
)

// RigControl pairs a rig client with its configuration plus the little bit of
// bookkeeping the forced-cutoff ladder needs.
type RigControl struct {
	C      Client
	Config *RigConfig

	// consecutive failed stop commands; drives the plug cutoff
	stopFails int
	// plugCut remembers that we hard-stopped the rig via its plug, so a
	// later start decision restores power first
	plugCut bool
}

// RunCycle sweeps all rigs once for the given SoC reading. Rigs are processed
// serially in configuration order and a failure on one rig never prevents the
// rest from being evaluated.
func (m *Monitor) RunCycle(soc float64) {
	state := &CycleState{Timestamp: time.Now(), SoC: soc}
	for _, r := range m.rigs {
		state.Rigs = append(state.Rigs, m.cycleRig(r, soc))
	}
	m.EventService.E <- NewStateEvent(state)
}

// cycleRig evaluates and, when warranted, actuates a single rig.
func (m *Monitor) cycleRig(r *RigControl, soc float64) RigState {
	rs := RigState{IP: r.C.IP(), Power: -1}

	active, err := r.C.Hashing()
	if err != nil {
		m.EventService.E <- NewErrorEvent(r.C.IP(), fmt.Errorf("status: %s", err))
		rs.Action = "probe-error"
		return rs
	}
	rs.Hashing = active
	rs.Power = m.wallPower(r)

	action := Decide(soc, r.Config.StopSoC, r.Config.ResumeSoC, active)
	rs.Action = action.String()
	desired, ok := action.Wants()
	if !ok || desired == active {
		// inside the hysteresis band, or already in the desired state
		glog.V(1).Infof("[%s] SOC %0.1f%% hashing=%t no command", r.C.IP(), soc, active)
		return rs
	}

	if desired && r.plugCut {
		return m.restorePower(r, rs)
	}

	if err := r.C.SetHashing(desired); err != nil {
		m.EventService.E <- NewErrorEvent(r.C.IP(), fmt.Errorf("set hashing: %s", err))
		rs.Action = "command-error"
		if !desired {
			m.recordStopFailure(r)
		}
		return rs
	}

	r.stopFails = 0
	verb := "stopped"
	if desired {
		verb = "started"
	}
	m.EventService.E <- NewLogEvent(r.C.IP(), fmt.Sprintf("SOC %0.1f%% -> mining %s", soc, verb))
	rs.Hashing = desired
	return rs
}

// wallPower reads the metering plug when the rig has one. Negative means
// unknown.
func (m *Monitor) wallPower(r *RigControl) float64 {
	if !r.C.PlugEnabled() {
		return -1
	}
	ps, err := r.C.PlugState()
	if err != nil {
		glog.V(1).Infof("[%s] plug state unavailable: %s", r.C.IP(), err)
		return -1
	}
	return ps.Power
}

// restorePower turns the plug back on after an earlier forced cutoff. The
// start command itself waits for the next cycle so the rig has time to boot.
func (m *Monitor) restorePower(r *RigControl, rs RigState) RigState {
	if err := r.C.PowerRestore(); err != nil {
		m.EventService.E <- NewErrorEvent(r.C.IP(), fmt.Errorf("power restore: %s", err))
		rs.Action = "power-error"
		return rs
	}
	r.plugCut = false
	m.EventService.E <- NewLogEvent(r.C.IP(), "plug powered back on, start deferred to next cycle")
	rs.Action = "power-restore"
	return rs
}

// recordStopFailure counts consecutive rejected stop commands and cuts the
// plug once the configured ladder is exhausted.
func (m *Monitor) recordStopFailure(r *RigControl) {
	r.stopFails++
	limit := r.Config.CutAfterStopFails
	if limit <= 0 || !r.C.PlugEnabled() || r.stopFails < limit {
		return
	}
	if err := r.C.PowerCut(); err != nil {
		m.EventService.E <- NewErrorEvent(r.C.IP(), fmt.Errorf("power cut: %s", err))
		return
	}
	r.plugCut = true
	r.stopFails = 0
	m.EventService.E <- NewLogEvent(r.C.IP(), "stop command kept failing, plug powered off")
	m.EventService.E <- NewEmailEvent(r.C.IP(), "Forced power cut",
		fmt.Sprintf("Rig %s refused %d consecutive stop commands and was cut at the plug.", r.C.IP(), limit))
}
