package socmonitor

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
)

const defaultRigPassword = "admin"

// RigConfig is one rig descriptor from miners.json. Loaded once at startup
// and never mutated.
type RigConfig struct {
	IP        string  `json:"ip"`
	Password  string  `json:"password"`
	StopSoC   float64 `json:"stop_soc"`
	ResumeSoC float64 `json:"resume_soc"`
	// PlugIP optionally names the TP-Link HS110 plug the rig is wired
	// through.
	PlugIP string `json:"plug_ip"`

	// CutAfterStopFails is the number of consecutive failed stop commands
	// before the plug is cut. Zero disables the cutoff.
	CutAfterStopFails int `json:"cut_after_stop_fails"`
}

func (c *RigConfig) validate() error {
	if _, err := netip.ParseAddr(c.IP); err != nil {
		return fmt.Errorf("rig %q: invalid ip: %s", c.IP, err)
	}
	if c.StopSoC > c.ResumeSoC {
		return fmt.Errorf("rig %s: stop_soc %0.1f above resume_soc %0.1f", c.IP, c.StopSoC, c.ResumeSoC)
	}
	if c.PlugIP != "" {
		if _, err := netip.ParseAddr(c.PlugIP); err != nil {
			return fmt.Errorf("rig %s: invalid plug_ip: %s", c.IP, err)
		}
	}
	if c.CutAfterStopFails < 0 {
		return fmt.Errorf("rig %s: cut_after_stop_fails must not be negative", c.IP)
	}
	return nil
}

// LoadRigConfigs reads miners.json: an ordered array of rig descriptors.
// Order is preserved; the control cycle sweeps rigs in this order.
func LoadRigConfigs(path string) ([]*RigConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rig config %s: %s", path, err)
	}
	return ParseRigConfigs(b)
}

// ParseRigConfigs parses and validates rig descriptors.
func ParseRigConfigs(b []byte) ([]*RigConfig, error) {
	var configs []*RigConfig
	if err := json.Unmarshal(b, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse rig config: %s", err)
	}
	for _, c := range configs {
		if c.Password == "" {
			c.Password = defaultRigPassword
		}
		if err := c.validate(); err != nil {
			return nil, err
		}
	}
	return configs, nil
}

// NewClient builds the rig client described by this config, attaching the
// smart plug power service when one is configured.
func (c *RigConfig) NewClient() Client {
	if c.PlugIP != "" {
		return NewVnishClientWithPowerService(c.IP, c.Password, NewHS110PowerService(c.PlugIP))
	}
	return NewVnishClient(c.IP, c.Password)
}
