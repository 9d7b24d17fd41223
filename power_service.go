package socmonitor

import (
	"encoding/json"
	"fmt"

	"github.com/oliveagle/jsonpath"
	"github.com/sausheong/hs1xxplug"
)

const (
	hs110RelayStateJsonPath = "$.system.get_sysinfo.relay_state"
	hs110PowerJsonPath      = "$.emeter.get_realtime.power"
)

// PowerState of a rig's wall plug.
type PowerState struct {
	On    bool
	Power float64
}

func (p PowerState) String() string {
	return fmt.Sprintf("{On: %t, Power: %0.1fW}", p.On, p.Power)
}

// PowerService controls the smart plug a rig is wired through: a last-resort
// stop when the rig's own API keeps rejecting the stop command, plus
// wall-power observability for the cycle snapshots.
type PowerService interface {
	Off() error
	On() error
	State() (*PowerState, error)
}

// HS110PowerService drives a TP-Link HS110 energy-metering plug.
type HS110PowerService struct {
	IP string

	c hs1xxplug.Hs1xxPlug
}

func NewHS110PowerService(ip string) PowerService {
	return &HS110PowerService{
		IP: ip,
		c:  hs1xxplug.Hs1xxPlug{IPAddress: ip},
	}
}

func (h *HS110PowerService) Off() error {
	return h.c.TurnOff()
}

func (h *HS110PowerService) On() error {
	return h.c.TurnOn()
}

// State reads the plug's meter document. The plug replies with a nested JSON
// blob, so the relay state and realtime power are picked out by path.
func (h *HS110PowerService) State() (*PowerState, error) {
	info, err := h.c.MeterInfo()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read plug meter: %s", h.IP, err)
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(info), &doc); err != nil {
		return nil, fmt.Errorf("%s: plug meter reply is not JSON: %s", h.IP, err)
	}
	relay, err := h.lookupFloat(doc, hs110RelayStateJsonPath)
	if err != nil {
		return nil, err
	}
	power, err := h.lookupFloat(doc, hs110PowerJsonPath)
	if err != nil {
		return nil, err
	}
	return &PowerState{On: int(relay) == 1, Power: power}, nil
}

func (h *HS110PowerService) lookupFloat(doc interface{}, path string) (float64, error) {
	res, err := jsonpath.JsonPathLookup(doc, path)
	if err != nil {
		return 0, fmt.Errorf("%s: plug meter reply lacks %s", h.IP, path)
	}
	f, ok := res.(float64)
	if !ok {
		return 0, fmt.Errorf("%s: plug meter field %s is not numeric", h.IP, path)
	}
	return f, nil
}
