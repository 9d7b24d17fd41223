package socmonitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
)

const providerTimeout = 5 * time.Second

// SoCProvider reads the current battery state-of-charge percentage.
type SoCProvider interface {
	ReadSoC() (float64, error)
}

// HomeAssistantProvider reads an entity's state from the Home-Assistant REST
// API using a long-lived bearer token.
type HomeAssistantProvider struct {
	baseURL string
	token   string
	entity  string

	hc *http.Client
}

func NewHomeAssistantProvider(baseURL, token, entity string) *HomeAssistantProvider {
	return &HomeAssistantProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		entity:  entity,
		hc:      &http.Client{Timeout: providerTimeout},
	}
}

// ReadSoC returns the battery SoC percentage as float.
func (p *HomeAssistantProvider) ReadSoC() (float64, error) {
	url := fmt.Sprintf("%s/api/states/%s", p.baseURL, p.entity)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, &ProviderError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	resp, err := p.hc.Do(req)
	if err != nil {
		return 0, &ProviderError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &ProviderError{Err: fmt.Errorf("%s returned HTTP %d", url, resp.StatusCode)}
	}
	var js struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&js); err != nil {
		return 0, &ProviderError{Err: fmt.Errorf("failed to decode state of %s: %s", p.entity, err)}
	}
	soc, err := strconv.ParseFloat(js.State, 64)
	if err != nil {
		return 0, &ProviderError{Err: fmt.Errorf("state %q of %s is not a number", js.State, p.entity)}
	}
	glog.V(1).Infof("%s state %0.1f%%", p.entity, soc)
	return soc, nil
}
