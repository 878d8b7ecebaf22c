// Package main provides a CI-friendly WebSocket smoke test for livedeck realtime.
//
// Against a running server (seeded presentation, presenter token) it validates:
//   - handshake + subprotocol selection
//   - hello/ack for a presenter and a participant
//   - presenter watch + start
//   - participant join and the presenter's participant:joined
//   - next-slide fanout to the participant
//   - leave and the presenter's participant:left
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "livedeck/contracts/realtime/v1"

	"github.com/coder/websocket"
)

const (
	defaultSubprotocol = "livedeck.realtime.v1"
	maxReadBytes       = 1 << 20 // 1MiB
)

type smokeClient struct {
	name         string
	conn         *websocket.Conn
	connectionID string

	inbox chan v1.Envelope
	errCh chan error
	seq   int
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		presID  = flag.String("presentation", "", "Presentation ID (required)")
		code    = flag.String("code", "", "Access code of the presentation (required)")
		token   = flag.String("token", "", "Presenter bearer token (required)")
		name    = flag.String("name", "smoke-participant", "Participant display name")
		stop    = flag.Bool("stop", true, "Stop the presentation at the end")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	if *presID == "" || *code == "" || *token == "" {
		fatalf("-presentation, -code and -token are required")
	}

	root := context.Background()

	p := mustConnect(root, "presenter", *wsURL, *origin, *token, *timeout)
	defer closeWS(p.conn)

	a := mustConnect(root, "participant", *wsURL, *origin, "", *timeout)
	defer closeWS(a.conn)

	if *verbose {
		fmt.Printf("connected: presenter=%s participant=%s origin=%q\n", p.connectionID, a.connectionID, *origin)
	}

	mustControl(root, p, v1.TypePresenterWatch, v1.PresenterWatchPayload{PresentationID: *presID}, *timeout)
	mustControl(root, p, v1.TypeControlStart, v1.ControlPayload{PresentationID: *presID}, *timeout)

	sessionID := mustJoin(root, a, *code, *name, *timeout)
	joined := p.mustReadUntilType(root, v1.TypeParticipantJoined, *timeout, skip(v1.TypePresentationStarted))
	var jp v1.ParticipantJoinedEvent
	mustDecode(joined, &jp)
	if jp.SessionID != sessionID || jp.ParticipantCount < 1 {
		fatalf("participant:joined mismatch: got=%+v want session=%s", jp, sessionID)
	}

	idx := mustControl(root, p, v1.TypeControlNextSlide, v1.ControlPayload{PresentationID: *presID}, *timeout)

	changed := a.mustReadUntilType(root, v1.TypeSlideChanged, *timeout, nil)
	var sc v1.SlideChangedEvent
	mustDecode(changed, &sc)
	if idx == nil || sc.SlideIndex != *idx {
		fatalf("slide:changed index mismatch: event=%d result=%v", sc.SlideIndex, idx)
	}

	a.mustWrite(root, v1.TypeHeartbeat, v1.HeartbeatPayload{SessionID: sessionID}, *timeout)

	req := a.mustWrite(root, v1.TypeLeavePresentation, v1.LeavePresentationPayload{
		PresentationID: *presID,
		SessionID:      sessionID,
	}, *timeout)
	left := a.mustReadReply(root, v1.TypeLeaveResult, req, *timeout)
	var lr v1.LeaveResultPayload
	mustDecode(left, &lr)
	if !lr.Success {
		fatalf("leave failed: %s", lr.Message)
	}

	_ = p.mustReadUntilType(root, v1.TypeParticipantLeft, *timeout, skip(v1.TypeSlideChanged))

	if *stop {
		mustControl(root, p, v1.TypeControlStop, v1.ControlPayload{PresentationID: *presID}, *timeout)
	}

	fmt.Printf("OK: presentation=%s session=%s slide_index=%d\n", *presID, sessionID, sc.SlideIndex)
}

func skip(types ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(types))
	for _, t := range types {
		m[t] = struct{}{}
	}
	return m
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, name, wsURL, origin, token string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, defaultSubprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	req := c.mustWrite(parent, v1.TypeHello, v1.HelloPayload{Token: token}, stepTimeout)
	ack := c.mustReadReply(parent, v1.TypeHelloAck, req, stepTimeout)

	var p v1.HelloAckPayload
	mustDecode(ack, &p)
	if strings.TrimSpace(p.ConnectionID) == "" {
		fatalf("hello:ack missing connectionId (%s)", name)
	}
	if token != "" && p.PresenterID == "" {
		fatalf("hello:ack missing presenterId for token connection (%s)", name)
	}
	c.connectionID = p.ConnectionID

	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				c.fail(fmt.Errorf("unsupported message type: %v", mt))
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad json: %w", err))
				return
			}
			if err := env.Validate(); err != nil {
				c.fail(fmt.Errorf("bad envelope: %w", err))
				return
			}

			select {
			case c.inbox <- env:
			default:
				c.fail(errors.New("inbox overflow: consumer too slow"))
				return
			}
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func mustJoin(parent context.Context, c *smokeClient, code, name string, stepTimeout time.Duration) string {
	req := c.mustWrite(parent, v1.TypeJoinPresentation, v1.JoinPresentationPayload{
		AccessCode:      code,
		ParticipantName: name,
	}, stepTimeout)

	res := c.mustReadReply(parent, v1.TypeJoinResult, req, stepTimeout)

	var p v1.JoinResultPayload
	mustDecode(res, &p)
	if !p.Success {
		fatalf("join failed (%s): %s", c.name, p.Message)
	}
	if strings.TrimSpace(p.SessionID) == "" {
		fatalf("join:result missing sessionId (%s)", c.name)
	}
	return p.SessionID
}

// mustControl sends a presenter request and returns the resulting slide index.
func mustControl(parent context.Context, c *smokeClient, typ string, payload any, stepTimeout time.Duration) *int {
	req := c.mustWrite(parent, typ, payload, stepTimeout)
	res := c.mustReadReply(parent, v1.TypeControlResult, req, stepTimeout)

	var p v1.ControlResultPayload
	mustDecode(res, &p)
	if !p.Success {
		fatalf("%s failed (%s): %s", typ, c.name, p.Message)
	}
	return p.CurrentSlideIndex
}

// mustReadReply waits for wantType correlated to req, skipping broadcasts.
func (c *smokeClient) mustReadReply(parent context.Context, wantType, req string, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		env := c.next(ctx, wantType)
		if env.CorrID == req && (env.Type == wantType || env.Type == v1.TypeError) {
			failOnError(c, env)
			return env
		}
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration, skipTypes map[string]struct{}) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		env := c.next(ctx, wantType)
		if env.Type == wantType {
			return env
		}
		failOnError(c, env)
		if _, ok := skipTypes[env.Type]; ok {
			continue
		}
		// Correlated replies to earlier requests may still be queued.
		if env.CorrID != "" {
			continue
		}
		fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
	}
}

func (c *smokeClient) next(ctx context.Context, wantType string) v1.Envelope {
	select {
	case <-ctx.Done():
		fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
	case err := <-c.errCh:
		fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
	case env, ok := <-c.inbox:
		if !ok {
			fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
		}
		return env
	}
	return v1.Envelope{}
}

func failOnError(c *smokeClient, env v1.Envelope) {
	if env.Type != v1.TypeError {
		return
	}
	var ep v1.ErrorPayload
	_ = json.Unmarshal(env.Payload, &ep)
	fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
}

// mustWrite sends a request and returns its envelope id.
func (c *smokeClient) mustWrite(parent context.Context, typ string, payload any, stepTimeout time.Duration) string {
	c.seq++
	id := fmt.Sprintf("%s-%d", c.name, c.seq)

	env, err := v1.NewEnvelope(typ, id, "", time.Now().UTC(), payload)
	if err != nil {
		fatalf("build %s: %v", typ, err)
	}

	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
	return id
}

func mustDecode(env v1.Envelope, dst any) {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		fatalf("unmarshal %s payload: %v", env.Type, err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
