package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/widavies/RobluScouter/internal/store"
)

var (
	// ErrUnauthorized means the team code was rejected by the hub.
	ErrUnauthorized = fmt.Errorf("hub rejected team code")
)

// HTTPTransport talks to the team hub's REST API. All requests carry the
// team code; the hub scopes every read and write to that team.
type HTTPTransport struct {
	client   *http.Client
	baseURL  string
	teamCode string
	device   string
}

// NewHTTP builds a transport for the hub at baseURL. A per-request timeout
// is applied on top of any deadline the caller's context carries, so a
// dead hub never stalls a sync cycle.
func NewHTTP(baseURL, teamCode, deviceName string) *HTTPTransport {
	return &HTTPTransport{
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		teamCode: strings.TrimSpace(teamCode),
		device:   deviceName,
	}
}

type activeResponse struct {
	Active bool `json:"active"`
}

type pullCheckoutsRequest struct {
	Versions map[int]int64 `json:"versions"`
}

type pullCheckoutsResponse struct {
	Checkouts []RemoteCheckout `json:"checkouts"`
}

type pushCheckoutsRequest struct {
	Device    string           `json:"device"`
	Checkouts []RemoteCheckout `json:"checkouts"`
}

// Ping implements Transport.
func (t *HTTPTransport) Ping(ctx context.Context) error {
	return t.do(ctx, http.MethodGet, "/api/ping", nil, nil)
}

// IsEventActive implements Transport.
func (t *HTTPTransport) IsEventActive(ctx context.Context) (bool, error) {
	var out activeResponse
	if err := t.do(ctx, http.MethodGet, "/api/event/active", nil, &out); err != nil {
		return false, err
	}
	return out.Active, nil
}

// PullTeam implements Transport. The hub answers 304 when its team version
// is not newer than sinceVersion.
func (t *HTTPTransport) PullTeam(ctx context.Context, sinceVersion int64) (TeamInfo, bool, error) {
	var out TeamInfo
	path := fmt.Sprintf("/api/team?since=%d", sinceVersion)
	err := t.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		if err == errNotModified {
			return TeamInfo{}, false, nil
		}
		return TeamInfo{}, false, err
	}
	return out, true, nil
}

// PushCheckouts implements Transport.
func (t *HTTPTransport) PushCheckouts(ctx context.Context, batch []RemoteCheckout) error {
	req := pushCheckoutsRequest{Device: t.device, Checkouts: batch}
	return t.do(ctx, http.MethodPost, "/api/checkouts/push", req, nil)
}

// PullCheckouts implements Transport. The cursor's per-ID version map goes
// in the request body; the hub returns every checkout whose version is
// newer than the one supplied (or that the map has never seen).
func (t *HTTPTransport) PullCheckouts(ctx context.Context, cursor store.Cursor) ([]RemoteCheckout, error) {
	req := pullCheckoutsRequest{Versions: cursor.CheckoutVersions}
	if req.Versions == nil {
		req.Versions = map[int]int64{}
	}
	var out pullCheckoutsResponse
	if err := t.do(ctx, http.MethodPost, "/api/checkouts/pull", req, &out); err != nil {
		return nil, err
	}
	return out.Checkouts, nil
}

var errNotModified = fmt.Errorf("not modified")

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Team-Code", t.teamCode)
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("hub %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusNotModified:
		return errNotModified
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("hub %s %s: status %d", method, path, resp.StatusCode)
	}
}
