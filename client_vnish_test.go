package socmonitor

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// rigServer fakes the relevant slice of a VNish web API.
type rigServer struct {
	*httptest.Server

	password   string
	tokenField string
	token      string

	unlockCalls  int
	statusCalls  map[string]int
	commandCalls map[string]int

	// per-path scripted status codes, consumed in order; empty means 200
	statusScript map[string][]int
	statusBody   string
	commandCode  int
}

func newRigServer(t *testing.T) *rigServer {
	t.Helper()
	rs := &rigServer{
		password:     "admin",
		tokenField:   "token",
		token:        "tok-1",
		statusCalls:  map[string]int{},
		commandCalls: map[string]int{},
		statusScript: map[string][]int{},
		statusBody:   `{"miner_state": "hashing"}`,
		commandCode:  http.StatusOK,
	}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.handle))
	t.Cleanup(rs.Server.Close)
	return rs
}

func (rs *rigServer) addr() string {
	return strings.TrimPrefix(rs.URL, "http://")
}

func (rs *rigServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == pathUnlock {
		rs.unlockCalls++
		rs.token = fmt.Sprintf("tok-%d", rs.unlockCalls)
		fmt.Fprintf(w, `{"%s": "%s"}`, rs.tokenField, rs.token)
		return
	}
	if r.Header.Get("Authorization") != rs.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.URL.Path {
	case "/api/v1/status", "/api/v1/summary":
		rs.statusCalls[r.URL.Path]++
		if script := rs.statusScript[r.URL.Path]; len(script) > 0 {
			code := script[0]
			rs.statusScript[r.URL.Path] = script[1:]
			w.WriteHeader(code)
			return
		}
		fmt.Fprint(w, rs.statusBody)
	case pathStart, pathStop:
		rs.commandCalls[r.URL.Path]++
		w.WriteHeader(rs.commandCode)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestHashingWithTokenFieldVariants(t *testing.T) {
	for _, field := range []string{"token", "access_token"} {
		t.Run(field, func(t *testing.T) {
			rs := newRigServer(t)
			rs.tokenField = field
			c := NewVnishClient(rs.addr(), "admin")
			hashing, err := c.Hashing()
			if err != nil {
				t.Fatalf("Hashing() failed: %s", err)
			}
			if !hashing {
				t.Error("expected rig to report hashing")
			}
			if rs.unlockCalls != 1 {
				t.Errorf("expected 1 unlock call, got %d", rs.unlockCalls)
			}
		})
	}
}

func TestUnlockMissingTokenField(t *testing.T) {
	rs := newRigServer(t)
	rs.tokenField = "something_else"
	c := NewVnishClient(rs.addr(), "admin")
	_, err := c.Hashing()
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestStatusEndpointFallback(t *testing.T) {
	rs := newRigServer(t)
	rs.statusScript["/api/v1/status"] = []int{http.StatusNotFound}
	c := NewVnishClient(rs.addr(), "admin")
	if _, err := c.Hashing(); err != nil {
		t.Fatalf("Hashing() failed: %s", err)
	}
	if rs.statusCalls["/api/v1/status"] != 1 || rs.statusCalls["/api/v1/summary"] != 1 {
		t.Errorf("expected fallback to /summary, got calls %v", rs.statusCalls)
	}
}

func TestNoEndpointWhenBothMissing(t *testing.T) {
	rs := newRigServer(t)
	rs.statusScript["/api/v1/status"] = []int{http.StatusNotFound}
	rs.statusScript["/api/v1/summary"] = []int{http.StatusNotFound}
	c := NewVnishClient(rs.addr(), "admin")
	_, err := c.Hashing()
	var noEP *NoEndpointError
	if !errors.As(err, &noEP) {
		t.Fatalf("expected NoEndpointError, got %v", err)
	}
}

func TestStatusFatalOnServerError(t *testing.T) {
	rs := newRigServer(t)
	rs.statusScript["/api/v1/status"] = []int{http.StatusBadGateway}
	c := NewVnishClient(rs.addr(), "admin")
	_, err := c.Hashing()
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusBadGateway {
		t.Errorf("expected HTTP 502 in error, got %d", statusErr.Code)
	}
	if rs.statusCalls["/api/v1/summary"] != 0 {
		t.Error("fallback path must not be tried after a fatal status")
	}
}

func TestProbeReauthenticatesOnceOnExpiredToken(t *testing.T) {
	rs := newRigServer(t)
	c := NewVnishClient(rs.addr(), "admin")
	if _, err := c.Hashing(); err != nil {
		t.Fatalf("initial Hashing() failed: %s", err)
	}

	// expire the token server-side; the next probe must re-auth exactly
	// once and retry the same path
	rs.token = "expired"
	hashing, err := c.Hashing()
	if err != nil {
		t.Fatalf("Hashing() after expiry failed: %s", err)
	}
	if !hashing {
		t.Error("expected rig to report hashing after re-auth")
	}
	if rs.unlockCalls != 2 {
		t.Errorf("expected 2 unlock calls, got %d", rs.unlockCalls)
	}
}

// A second 401 on the retried call is terminal for the operation, not a
// further retry.
func TestProbeAuthRetryBound(t *testing.T) {
	unlockCalls := 0
	always401 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pathUnlock {
			unlockCalls++
			fmt.Fprint(w, `{"token": "never-accepted"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer always401.Close()

	c := NewVnishClient(strings.TrimPrefix(always401.URL, "http://"), "admin")
	_, err := c.Hashing()
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusUnauthorized {
		t.Errorf("expected terminal HTTP 401, got %d", statusErr.Code)
	}
	if unlockCalls != 2 {
		t.Errorf("expected exactly 2 unlock calls (initial + one retry), got %d", unlockCalls)
	}
}

func TestSetHashingIssuesCommand(t *testing.T) {
	rs := newRigServer(t)
	c := NewVnishClient(rs.addr(), "admin")
	if err := c.SetHashing(true); err != nil {
		t.Fatalf("SetHashing(true) failed: %s", err)
	}
	if rs.commandCalls[pathStart] != 1 {
		t.Errorf("expected 1 start call, got %d", rs.commandCalls[pathStart])
	}
	if err := c.SetHashing(false); err != nil {
		t.Fatalf("SetHashing(false) failed: %s", err)
	}
	if rs.commandCalls[pathStop] != 1 {
		t.Errorf("expected 1 stop call, got %d", rs.commandCalls[pathStop])
	}
}

// The firmware answers 500 when the rig is already in the requested state, so
// repeating a command is not an error.
func TestSetHashingAlreadySatisfied(t *testing.T) {
	rs := newRigServer(t)
	rs.commandCode = http.StatusInternalServerError
	c := NewVnishClient(rs.addr(), "admin")
	if err := c.SetHashing(true); err != nil {
		t.Fatalf("first SetHashing(true) failed: %s", err)
	}
	if err := c.SetHashing(true); err != nil {
		t.Fatalf("repeated SetHashing(true) failed: %s", err)
	}
}

func TestSetHashingCommandError(t *testing.T) {
	rs := newRigServer(t)
	rs.commandCode = http.StatusForbidden
	c := NewVnishClient(rs.addr(), "admin")
	err := c.SetHashing(false)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmdErr.Code != http.StatusForbidden {
		t.Errorf("expected HTTP 403 in error, got %d", cmdErr.Code)
	}
}

func TestSetHashingReauthenticatesOnce(t *testing.T) {
	rs := newRigServer(t)
	c := NewVnishClient(rs.addr(), "admin")
	if err := c.SetHashing(true); err != nil {
		t.Fatalf("initial SetHashing failed: %s", err)
	}
	rs.token = "expired"
	if err := c.SetHashing(false); err != nil {
		t.Fatalf("SetHashing after expiry failed: %s", err)
	}
	if rs.unlockCalls != 2 {
		t.Errorf("expected 2 unlock calls, got %d", rs.unlockCalls)
	}
	if rs.commandCalls[pathStop] != 1 {
		t.Errorf("expected 1 accepted stop call, got %d", rs.commandCalls[pathStop])
	}
}

// The rig API wants the bare token value in the Authorization header, not
// bearer form.
func TestAuthorizationHeaderIsRawToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pathUnlock {
			fmt.Fprint(w, `{"token": "raw-token"}`)
			return
		}
		got = r.Header.Get("Authorization")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := NewVnishClient(strings.TrimPrefix(srv.URL, "http://"), "admin")
	if _, err := c.Hashing(); err != nil {
		t.Fatalf("Hashing() failed: %s", err)
	}
	if got != "raw-token" {
		t.Errorf("Authorization header = %q, want bare %q", got, "raw-token")
	}
}

func TestReadOnlySuppressesCommands(t *testing.T) {
	rs := newRigServer(t)
	c := NewVnishClient(rs.addr(), "admin")
	c.SetReadOnly(true, false)
	if err := c.SetHashing(true); err != nil {
		t.Fatalf("read-only SetHashing should no-op, got %s", err)
	}
	if rs.commandCalls[pathStart] != 0 {
		t.Error("read-only client must not issue commands")
	}

	c.SetReadOnly(true, true)
	if err := c.SetHashing(true); err == nil {
		t.Error("read-only client with failOnWrites must return an error")
	}
}

// The stdin command loop flips the read-only flags while the monitor
// goroutine issues commands; both sides must go through the client's lock.
func TestReadOnlyToggleConcurrentWithCommands(t *testing.T) {
	rs := newRigServer(t)
	c := NewVnishClient(rs.addr(), "admin")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			c.SetReadOnly(i%2 == 0, false)
			c.ReadOnly()
		}
	}()

	for i := 0; i < 50; i++ {
		if err := c.SetHashing(true); err != nil {
			t.Fatalf("SetHashing failed: %s", err)
		}
	}
	<-done
}
