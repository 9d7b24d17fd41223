package socmonitor

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// StateTopic carries one retained snapshot per control cycle so Home
// Assistant can display what the controller last did.
const StateTopic = "energy/miners/soc-monitor/state"

// CycleState is the snapshot of one control cycle.
type CycleState struct {
	Timestamp time.Time
	SoC       float64
	Rigs      []RigState
}

// RigState is one rig's slice of a cycle snapshot.
type RigState struct {
	IP      string
	Hashing bool
	Action  string
	// Power is the wall draw in watts when the rig has a metering plug,
	// negative otherwise.
	Power float64
}

// Publisher publishes cycle snapshots to MQTT.
type Publisher interface {
	Publish(state CycleState) error
	Close() error
}

type statePayload struct {
	Timestamp string            `json:"timestamp"`
	SoC       float64           `json:"soc"`
	Rigs      []rigStatePayload `json:"rigs"`
}

type rigStatePayload struct {
	IP      string   `json:"ip"`
	Hashing bool     `json:"hashing"`
	Action  string   `json:"action"`
	Power   *float64 `json:"power,omitempty"`
}

// FormatStatePayload creates the JSON payload for a cycle snapshot.
func FormatStatePayload(state CycleState) ([]byte, error) {
	payload := statePayload{
		Timestamp: state.Timestamp.UTC().Format(time.RFC3339),
		SoC:       state.SoC,
	}
	for _, r := range state.Rigs {
		rp := rigStatePayload{IP: r.IP, Hashing: r.Hashing, Action: r.Action}
		if r.Power >= 0 {
			p := r.Power
			rp.Power = &p
		}
		payload.Rigs = append(payload.Rigs, rp)
	}
	return json.Marshal(payload)
}

// PahoPublisher publishes to an actual MQTT broker.
type PahoPublisher struct {
	client paho.Client
	topic  string
}

// NewPahoPublisher connects to the given broker, e.g. tcp://host:1883.
func NewPahoPublisher(broker string) (*PahoPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("soc-monitor").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &PahoPublisher{client: client, topic: StateTopic}, nil
}

// Publish sends one cycle snapshot, retained so late subscribers see the last
// known state.
func (p *PahoPublisher) Publish(state CycleState) error {
	payload, err := FormatStatePayload(state)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *PahoPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

// FakePublisher records published snapshots for test assertions.
type FakePublisher struct {
	States   []CycleState
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	Closed bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(state CycleState) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.States = append(f.States, state)
	payload, err := FormatStatePayload(state)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
