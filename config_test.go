package socmonitor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseRigConfigs(t *testing.T) {
	raw := `[
		{"ip": "192.168.88.31", "stop_soc": 20, "resume_soc": 30},
		{"ip": "192.168.88.32", "password": "hunter2", "stop_soc": 35, "resume_soc": 55,
		 "plug_ip": "192.168.88.60", "cut_after_stop_fails": 3}
	]`
	configs, err := ParseRigConfigs([]byte(raw))
	if err != nil {
		t.Fatalf("ParseRigConfigs failed: %s", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 rigs, got %d", len(configs))
	}
	if configs[0].Password != "admin" {
		t.Errorf("missing password must default to admin, got %q", configs[0].Password)
	}
	if configs[1].Password != "hunter2" {
		t.Errorf("explicit password overridden, got %q", configs[1].Password)
	}
	if configs[0].IP != "192.168.88.31" || configs[1].IP != "192.168.88.32" {
		t.Error("configuration order must be preserved")
	}
	if configs[1].PlugIP != "192.168.88.60" || configs[1].CutAfterStopFails != 3 {
		t.Errorf("plug settings not parsed: %+v", configs[1])
	}
}

func TestParseRigConfigsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"ip": ...`},
		{"bad ip", `[{"ip": "not-an-ip", "stop_soc": 20, "resume_soc": 30}]`},
		{"inverted band", `[{"ip": "192.168.88.31", "stop_soc": 40, "resume_soc": 30}]`},
		{"bad plug ip", `[{"ip": "192.168.88.31", "stop_soc": 20, "resume_soc": 30, "plug_ip": "x"}]`},
		{"negative cutoff", `[{"ip": "192.168.88.31", "stop_soc": 20, "resume_soc": 30, "cut_after_stop_fails": -1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRigConfigs([]byte(tt.raw)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestParseRigConfigsCollapsedBand(t *testing.T) {
	configs, err := ParseRigConfigs([]byte(`[{"ip": "192.168.88.31", "stop_soc": 50, "resume_soc": 50}]`))
	if err != nil {
		t.Fatalf("equal thresholds collapse to a switching point, must be valid: %s", err)
	}
	if configs[0].StopSoC != 50 || configs[0].ResumeSoC != 50 {
		t.Errorf("unexpected thresholds %+v", configs[0])
	}
}

func TestLoadRigConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "miners.json")
	content := `[{"ip": "192.168.88.31", "stop_soc": 20, "resume_soc": 30}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	configs, err := LoadRigConfigs(path)
	if err != nil {
		t.Fatalf("LoadRigConfigs failed: %s", err)
	}
	if len(configs) != 1 {
		t.Fatalf("expected 1 rig, got %d", len(configs))
	}

	if _, err := LoadRigConfigs(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file must be an error")
	}
}
