package socmonitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	pathUnlock = "/api/v1/unlock"
	pathStart  = "/api/v1/mining/start"
	pathStop   = "/api/v1/mining/stop"

	rigTimeout = 5 * time.Second
)

// Newer firmware trees moved the status endpoint, so both paths are probed in
// priority order.
var statusPaths = []string{"/api/v1/status", "/api/v1/summary"}

// VnishClient drives one VNish/AntMiner rig over its web API. The session
// token is owned exclusively by this client and refreshed at most once per
// operation on HTTP 401.
type VnishClient struct {
	addr     string
	password string
	token    string

	// mu guards the read-only flags, which the stdin command loop flips
	// while the monitor goroutine issues commands.
	mu           sync.Mutex
	readOnly     bool
	failOnWrites bool

	hc *http.Client
	ps PowerService
}

func NewVnishClient(addr, password string) Client {
	return &VnishClient{
		addr:     addr,
		password: password,
		hc:       &http.Client{Timeout: rigTimeout},
	}
}

func NewVnishClientWithPowerService(addr, password string, ps PowerService) Client {
	return &VnishClient{
		addr:     addr,
		password: password,
		hc:       &http.Client{Timeout: rigTimeout},
		ps:       ps,
	}
}

func (c *VnishClient) IP() string {
	return c.addr
}

func (c *VnishClient) SetReadOnly(readOnly, failOnWrites bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readOnly = readOnly
	c.failOnWrites = failOnWrites
}

func (c *VnishClient) ReadOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readOnly
}

// readOnlyFlags snapshots both flags under the lock so a write path sees a
// consistent pair.
func (c *VnishClient) readOnlyFlags() (readOnly, failOnWrites bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readOnly, c.failOnWrites
}

func (c *VnishClient) url(path string) string {
	return fmt.Sprintf("http://%s%s", c.addr, path)
}

// refreshToken unlocks the web GUI and captures the session token. The token
// field name varies across firmware builds.
func (c *VnishClient) refreshToken() error {
	body, err := json.Marshal(map[string]string{"pw": c.password})
	if err != nil {
		return &AuthError{Addr: c.addr, Err: err}
	}
	resp, err := c.hc.Post(c.url(pathUnlock), "application/json", bytes.NewReader(body))
	if err != nil {
		return &AuthError{Addr: c.addr, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AuthError{Addr: c.addr, Err: fmt.Errorf("unlock returned HTTP %d", resp.StatusCode)}
	}
	var js struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&js); err != nil {
		return &AuthError{Addr: c.addr, Err: fmt.Errorf("failed to decode unlock response: %s", err)}
	}
	token := js.Token
	if token == "" {
		token = js.AccessToken
	}
	if token == "" {
		return &AuthError{Addr: c.addr, Err: fmt.Errorf("unlock response lacked token field")}
	}
	c.token = token
	return nil
}

// ensureToken authenticates on first use; later calls reuse the cached token.
func (c *VnishClient) ensureToken() error {
	if c.token != "" {
		return nil
	}
	return c.refreshToken()
}

// authGet issues an authenticated GET. The firmware expects the raw token
// value in the Authorization header, without a Bearer prefix; only the unlock
// flow on the Home-Assistant side uses bearer form.
func (c *VnishClient) authGet(path string) (*http.Response, error) {
	if err := c.ensureToken(); err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, &TransportError{Addr: c.addr, Err: err}
	}
	req.Header.Set("Authorization", c.token)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &TransportError{Addr: c.addr, Err: err}
	}
	return resp, nil
}

// stats returns the rig status document, trying /status then /summary. A 401
// triggers exactly one token refresh and one retry of the same path.
func (c *VnishClient) stats() (interface{}, error) {
	for _, path := range statusPaths {
		resp, err := c.authGet(path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			if err := c.refreshToken(); err != nil {
				return nil, err
			}
			resp, err = c.authGet(path)
			if err != nil {
				return nil, err
			}
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var doc interface{}
			err := json.NewDecoder(resp.Body).Decode(&doc)
			resp.Body.Close()
			if err != nil {
				return nil, &TransportError{Addr: c.addr, Err: fmt.Errorf("failed to decode status document: %s", err)}
			}
			return doc, nil
		}
		code := resp.StatusCode
		resp.Body.Close()
		if code == http.StatusNotFound {
			// wrong path for this firmware tree, try the next one
			continue
		}
		return nil, &StatusError{Addr: c.addr, Path: path, Code: code}
	}
	return nil, &NoEndpointError{Addr: c.addr}
}

func (c *VnishClient) Hashing() (bool, error) {
	doc, err := c.stats()
	if err != nil {
		return false, err
	}
	return DetectHashing(doc), nil
}

func (c *VnishClient) postCommand(path string) (*http.Response, error) {
	if err := c.ensureToken(); err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.url(path), bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, &TransportError{Addr: c.addr, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &TransportError{Addr: c.addr, Err: err}
	}
	return resp, nil
}

// SetHashing issues a start or stop command. HTTP 500 counts as success: the
// firmware returns it when the rig is already in the requested state.
func (c *VnishClient) SetHashing(active bool) error {
	if readOnly, failOnWrites := c.readOnlyFlags(); readOnly {
		if failOnWrites {
			return fmt.Errorf("%s: rig is read only", c.addr)
		}
		return nil
	}
	path := pathStop
	if active {
		path = pathStart
	}
	resp, err := c.postCommand(path)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if err := c.refreshToken(); err != nil {
			return err
		}
		resp, err = c.postCommand(path)
		if err != nil {
			return err
		}
	}
	code := resp.StatusCode
	resp.Body.Close()
	switch code {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusInternalServerError:
		return nil
	}
	return &CommandError{Addr: c.addr, Path: path, Code: code}
}

func (c *VnishClient) PlugEnabled() bool {
	return c.ps != nil
}

func (c *VnishClient) PlugState() (*PowerState, error) {
	if c.ps == nil {
		return nil, fmt.Errorf("%s: no smart plug configured", c.addr)
	}
	return c.ps.State()
}

func (c *VnishClient) PowerCut() error {
	if readOnly, failOnWrites := c.readOnlyFlags(); readOnly {
		if failOnWrites {
			return fmt.Errorf("%s: rig is read only", c.addr)
		}
		return nil
	}
	if c.ps == nil {
		return fmt.Errorf("%s: power cut not enabled, no smart plug configured", c.addr)
	}
	return c.ps.Off()
}

func (c *VnishClient) PowerRestore() error {
	if readOnly, failOnWrites := c.readOnlyFlags(); readOnly {
		if failOnWrites {
			return fmt.Errorf("%s: rig is read only", c.addr)
		}
		return nil
	}
	if c.ps == nil {
		return fmt.Errorf("%s: power restore not enabled, no smart plug configured", c.addr)
	}
	return c.ps.On()
}
