package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/widavies/RobluScouter/internal/store"
)

// Peer protocol: newline-delimited JSON messages over a byte stream. One
// request message, one reply, matched by ID. The stream is typically a TCP
// connection but anything net.Conn-shaped works (RFCOMM sockets, net.Pipe
// in tests).

type peerOp string

const (
	opPing      peerOp = "ping"
	opPong      peerOp = "pong"
	opEventReq  peerOp = "event-req"
	opEventAck  peerOp = "event-ack"
	opTeamReq   peerOp = "team-req"
	opTeamAck   peerOp = "team-ack"
	opPushReq   peerOp = "push-req"
	opPushAck   peerOp = "push-ack"
	opPullReq   peerOp = "pull-req"
	opPullAck   peerOp = "pull-ack"
)

type peerMessage struct {
	ID        string           `json:"id"`
	Op        peerOp           `json:"op"`
	From      string           `json:"from,omitempty"`
	Since     int64            `json:"since,omitempty"`
	Active    bool             `json:"active,omitempty"`
	Team      *TeamInfo        `json:"team,omitempty"`
	Checkouts []RemoteCheckout `json:"checkouts,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func (m *peerMessage) encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func decodePeer(line []byte) (*peerMessage, error) {
	var m peerMessage
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, fmt.Errorf("peer: decode message: %w", err)
	}
	return &m, nil
}

// PeerTransport syncs directly against another device running Serve. Each
// call opens a fresh stream via dial, so a dropped peer only fails that
// one call. Versioning is timestamp-based: PullCheckouts sends the
// cursor's LastPeerSync and the peer answers with everything edited since.
type PeerTransport struct {
	dial   func(ctx context.Context) (net.Conn, error)
	device string
}

// NewPeer builds a transport that dials addr over TCP for every call.
func NewPeer(addr, deviceName string) *PeerTransport {
	return &PeerTransport{
		dial: func(ctx context.Context) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
		device: deviceName,
	}
}

// NewPeerConn builds a transport over a caller-supplied dialer. Tests use
// this with net.Pipe.
func NewPeerConn(dial func(ctx context.Context) (net.Conn, error), deviceName string) *PeerTransport {
	return &PeerTransport{dial: dial, device: deviceName}
}

// Ping implements Transport.
func (t *PeerTransport) Ping(ctx context.Context) error {
	_, err := t.roundTrip(ctx, &peerMessage{Op: opPing}, opPong)
	return err
}

// IsEventActive implements Transport.
func (t *PeerTransport) IsEventActive(ctx context.Context) (bool, error) {
	reply, err := t.roundTrip(ctx, &peerMessage{Op: opEventReq}, opEventAck)
	if err != nil {
		return false, err
	}
	return reply.Active, nil
}

// PullTeam implements Transport.
func (t *PeerTransport) PullTeam(ctx context.Context, sinceVersion int64) (TeamInfo, bool, error) {
	reply, err := t.roundTrip(ctx, &peerMessage{Op: opTeamReq, Since: sinceVersion}, opTeamAck)
	if err != nil {
		return TeamInfo{}, false, err
	}
	if reply.Team == nil {
		return TeamInfo{}, false, nil
	}
	return *reply.Team, true, nil
}

// PushCheckouts implements Transport.
func (t *PeerTransport) PushCheckouts(ctx context.Context, batch []RemoteCheckout) error {
	_, err := t.roundTrip(ctx, &peerMessage{Op: opPushReq, Checkouts: batch}, opPushAck)
	return err
}

// PullCheckouts implements Transport.
func (t *PeerTransport) PullCheckouts(ctx context.Context, cursor store.Cursor) ([]RemoteCheckout, error) {
	reply, err := t.roundTrip(ctx, &peerMessage{Op: opPullReq, Since: cursor.LastPeerSync}, opPullAck)
	if err != nil {
		return nil, err
	}
	return reply.Checkouts, nil
}

func (t *PeerTransport) roundTrip(ctx context.Context, req *peerMessage, want peerOp) (*peerMessage, error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("peer: dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	req.ID = uuid.NewString()
	req.From = t.device
	line, err := req.encode()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(line); err != nil {
		return nil, fmt.Errorf("peer: write %s: %w", req.Op, err)
	}

	r := bufio.NewReader(conn)
	raw, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("peer: read reply to %s: %w", req.Op, err)
	}
	reply, err := decodePeer(raw)
	if err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("peer: %s", reply.Error)
	}
	if reply.Op != want {
		return nil, fmt.Errorf("peer: got %s, want %s", reply.Op, want)
	}
	return reply, nil
}

// Host answers peer requests on the serving side of a connection. The
// syncer's PeerHost implements it over the local record store.
type Host interface {
	EventActive(ctx context.Context) (bool, error)
	Team(ctx context.Context, sinceVersion int64) (TeamInfo, bool, error)
	AcceptCheckouts(ctx context.Context, from string, batch []RemoteCheckout) error
	CheckoutsSince(ctx context.Context, since int64) ([]RemoteCheckout, error)
}

// Serve answers requests on conn until the stream closes or ctx is done.
// Per-request handler errors are reported to the peer, never terminate
// the loop.
func Serve(ctx context.Context, conn net.Conn, h Host) error {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := r.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("peer: read request: %w", err)
		}
		req, err := decodePeer(raw)
		if err != nil {
			return err
		}

		reply := handle(ctx, req, h)
		reply.ID = req.ID
		line, err := reply.encode()
		if err != nil {
			return err
		}
		if _, err := conn.Write(line); err != nil {
			return fmt.Errorf("peer: write reply: %w", err)
		}
	}
}

func handle(ctx context.Context, req *peerMessage, h Host) *peerMessage {
	fail := func(err error) *peerMessage {
		return &peerMessage{Op: req.Op, Error: err.Error()}
	}
	switch req.Op {
	case opPing:
		return &peerMessage{Op: opPong}
	case opEventReq:
		active, err := h.EventActive(ctx)
		if err != nil {
			return fail(err)
		}
		return &peerMessage{Op: opEventAck, Active: active}
	case opTeamReq:
		info, changed, err := h.Team(ctx, req.Since)
		if err != nil {
			return fail(err)
		}
		m := &peerMessage{Op: opTeamAck}
		if changed {
			m.Team = &info
		}
		return m
	case opPushReq:
		if err := h.AcceptCheckouts(ctx, req.From, req.Checkouts); err != nil {
			return fail(err)
		}
		return &peerMessage{Op: opPushAck}
	case opPullReq:
		batch, err := h.CheckoutsSince(ctx, req.Since)
		if err != nil {
			return fail(err)
		}
		return &peerMessage{Op: opPullAck, Checkouts: batch}
	default:
		return fail(fmt.Errorf("unknown op %q", req.Op))
	}
}
