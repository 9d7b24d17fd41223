package socmonitor

import (
	"fmt"
	"time"
)

// Monitor ties the SoC sensor, the hysteresis policy and the rig clients
// together: one blocking loop that alternates between sampling and idling.
// A sampling failure skips the control cycle for that tick; it never stops
// the loop.
type Monitor struct {
	EventService *EventService

	rigs     []*RigControl
	provider SoCProvider
	interval time.Duration

	stop  chan bool
	done  chan bool
	state int
}

func NewMonitor(provider SoCProvider, eventService *EventService, interval time.Duration) *Monitor {
	return &Monitor{
		EventService: eventService,
		provider:     provider,
		interval:     interval,
		state:        STOPPED,
	}
}

func (m *Monitor) AddRig(c Client, config *RigConfig) {
	m.rigs = append(m.rigs, &RigControl{C: c, Config: config})
}

// Start launches the event service and the polling loop.
func (m *Monitor) Start() error {
	if m.state == RUNNING {
		return fmt.Errorf("monitor already running")
	}
	m.stop = make(chan bool, 1)
	m.done = make(chan bool)
	m.state = RUNNING
	go m.EventService.Start()
	go m.run(m.stop, m.done)
	return nil
}

// Stop signals the polling loop and blocks until it has exited, so an
// in-flight cycle always completes before Stop returns.
func (m *Monitor) Stop() error {
	if m.state == STOPPED {
		return fmt.Errorf("monitor already stopped")
	}
	m.stop <- true
	<-m.done
	m.EventService.Stop()
	m.state = STOPPED
	close(m.stop)
	return nil
}

// run is the sampling/idle loop. Rigs are swept strictly serially within a
// tick; there are never overlapping cycles.
func (m *Monitor) run(stop chan bool, done chan bool) {
	defer close(done)
	m.EventService.E <- NewLogEvent("monitor",
		fmt.Sprintf("monitoring %d rigs, poll interval %v", len(m.rigs), m.interval))
	for {
		soc, err := m.provider.ReadSoC()
		if err != nil {
			m.EventService.E <- NewErrorEvent("monitor", err)
		} else {
			m.RunCycle(soc)
		}
		select {
		case <-time.After(m.interval):
		case <-stop:
			m.EventService.E <- NewLogEvent("monitor", "polling stopped")
			return
		}
	}
}
