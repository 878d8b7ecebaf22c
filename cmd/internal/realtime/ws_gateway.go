package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"livedeck/cmd/internal/broadcast"
	"livedeck/cmd/internal/control"
	"livedeck/cmd/internal/httpapi"
	"livedeck/cmd/internal/join"
	"livedeck/cmd/internal/metrics"
	"livedeck/cmd/internal/participant"
	v1 "livedeck/contracts/realtime/v1"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"
)

const (
	wsSubprotocolV1 = "livedeck.realtime.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	wsDefaultOriginRequired = true
)

const msgSessionNotFound = "session not found"

var wsDefaultAllowedOrigins = []string{"http://localhost", "http://127.0.0.1"}

// ErrInvalidInput is returned by NewWSGateway for missing collaborators.
var ErrInvalidInput = errors.New("realtime: invalid input")

// JoinService is the participant side of the gateway (typically *join.Coordinator).
type JoinService interface {
	Execute(ctx context.Context, req join.Request) join.Result
	Leave(ctx context.Context, presentationID, sessionID string) (participant.Session, bool)
	LeaveSocket(ctx context.Context, socketID string) []participant.Session
	Touch(sessionID string) bool
}

// ControlService is the presenter side of the gateway (typically *control.Coordinator).
type ControlService interface {
	Start(ctx context.Context, presentationID, presenterID string) control.Result
	Stop(ctx context.Context, presentationID, presenterID string) control.Result
	Next(ctx context.Context, presentationID, presenterID string) control.Result
	Prev(ctx context.Context, presentationID, presenterID string) control.Result
	Goto(ctx context.Context, presentationID, presenterID string, index int) control.Result
	Watch(ctx context.Context, presentationID, presenterID string) control.Result
}

// TokenVerifier resolves a presenter bearer token to a presenter id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// GatewayConfig holds the websocket knobs. Zero values fall back to defaults.
type GatewayConfig struct {
	// DevInsecure disables websocket.Accept origin verification. Dev only.
	DevInsecure    bool
	OriginRequired bool
	AllowedOrigins []string

	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration
	SendQueueSize   int

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	RateEvents int
	RateWindow time.Duration

	// TrustProxy makes the client IP come from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// DefaultGatewayConfig returns the secure defaults: origin required, localhost only.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		OriginRequired:    wsDefaultOriginRequired,
		AllowedOrigins:    slices.Clone(wsDefaultAllowedOrigins),
		WriteTimeout:      wsDefaultWriteTimeout,
		ReadIdleTimeout:   wsDefaultReadIdle,
		SendQueueSize:     wsDefaultSendQueueSize,
		HeartbeatInterval: heartbeatInterval,
		HeartbeatTimeout:  heartbeatTimeout,
		RateEvents:        rateLimitEvents,
		RateWindow:        rateLimitWindow,
	}
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	d := DefaultGatewayConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = d.ReadIdleTimeout
	}
	if c.SendQueueSize < wsMinSendQueueSize {
		c.SendQueueSize = wsMinSendQueueSize
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = d.RateEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = d.RateWindow
	}
	return c
}

// WSGateway is the WebSocket entrypoint for livedeck realtime.
//
// It enforces origin policy, subprotocol selection, rate limits and heartbeats,
// and routes validated envelopes to the join and control services.
type WSGateway struct {
	log      *slog.Logger
	hub      *Hub
	joins    JoinService
	controls ControlService
	verifier TokenVerifier
	validate *validator.Validate
	metrics  *metrics.Metrics

	cfg GatewayConfig
	// Derived for websocket.Accept origin checks.
	originPatterns []string
}

// GatewayOption configures the gateway.
type GatewayOption func(*WSGateway)

// WithGatewayConfig replaces the default configuration.
func WithGatewayConfig(cfg GatewayConfig) GatewayOption {
	return func(g *WSGateway) { g.cfg = cfg }
}

// WithVerifier enables presenter authentication.
func WithVerifier(v TokenVerifier) GatewayOption {
	return func(g *WSGateway) { g.verifier = v }
}

// WithGatewayMetrics attaches the connection gauge.
func WithGatewayMetrics(m *metrics.Metrics) GatewayOption {
	return func(g *WSGateway) { g.metrics = m }
}

// NewWSGateway constructs a gateway. Without a verifier every presenter token
// is rejected and only participant traffic is served.
func NewWSGateway(log *slog.Logger, hub *Hub, joins JoinService, controls ControlService, opts ...GatewayOption) (*WSGateway, error) {
	if hub == nil || joins == nil || controls == nil {
		return nil, ErrInvalidInput
	}
	if log == nil {
		log = slog.Default()
	}

	g := &WSGateway{
		log:      log,
		hub:      hub,
		joins:    joins,
		controls: controls,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      DefaultGatewayConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	g.cfg = g.cfg.withDefaults()

	// websocket.Accept runs its own origin check: same-host passes, cross-origin
	// needs OriginPatterns. Deriving them from the allowlist keeps both layers in agreement.
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.cfg.AllowedOrigins)
	return g, nil
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the realtime loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var presenterID string
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		id, err := g.verifyToken(authz)
		if err != nil {
			g.log.Info("ws.reject.auth", "err", err, "remote", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		presenterID = id
	}

	clientIP := httpapi.ClientIP(r, g.cfg.TrustProxy)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{wsSubprotocolV1},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	socketID, err := NewConnectionID(time.Now().UTC())
	if err != nil {
		g.log.Error("ws.id.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "internal error")
		return
	}
	client := NewClient(socketID, g.cfg.SendQueueSize)
	client.PresenterID = presenterID

	g.metrics.WSConnected()
	defer g.metrics.WSDisconnected()
	g.log.Info("ws.connect", "socket_id", socketID, "presenter_id", presenterID, "client_ip", clientIP)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once

	// shutdown is idempotent and may run from any connection goroutine.
	// It does NOT close client.Send.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	sess := &connState{client: client, clientIP: clientIP, sessions: make(map[string]string)}

	// Leave rooms before notifying presenters so a departing socket never
	// receives its own participant:left.
	defer func() {
		g.hub.UnsubscribeAll(socketID)
		// r.Context() is done by now; departures still need to broadcast.
		g.joins.LeaveSocket(context.WithoutCancel(ctx), socketID)
		g.log.Info("ws.disconnect", "socket_id", socketID)
	}()

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					g.log.Info("ws.write.fail", "socket_id", socketID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatInterval)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "socket_id", socketID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(ctx, client, "", "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "socket_id", socketID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		if !rl.Allow(time.Now().UTC()) {
			g.trySendError(ctx, client, env.ID, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(ctx, client, env.ID, "bad_envelope", err.Error())
			continue readLoop
		}

		// Any inbound traffic counts as liveness for this socket's sessions.
		sess.touchAll(g.joins)

		switch {
		case env.Type == v1.TypeHello:
			if err := g.onHello(ctx, client, env); err != nil {
				g.trySendError(ctx, client, env.ID, "hello_failed", err.Error())
				shutdown(websocket.StatusPolicyViolation, "hello failed")
				break readLoop
			}

		case env.Type == v1.TypeJoinPresentation:
			g.onJoin(ctx, sess, env)

		case env.Type == v1.TypeLeavePresentation:
			g.onLeave(ctx, sess, env)

		case env.Type == v1.TypeHeartbeat:
			g.onHeartbeat(ctx, sess, env)

		case env.Type == v1.TypePresenterWatch:
			g.onWatch(ctx, client, env)

		case v1.IsControl(env.Type):
			g.onControl(ctx, client, env)

		default:
			g.trySendError(ctx, client, env.ID, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// connState is the per-connection bookkeeping owned by the read loop.
type connState struct {
	client   *Client
	clientIP string
	// sessions maps participant session id -> presentation id.
	sessions map[string]string
}

func (s *connState) touchAll(joins JoinService) {
	for sid := range s.sessions {
		joins.Touch(sid)
	}
}

// forget drops every session held for presentationID except keep.
func (s *connState) forget(presentationID, keep string) {
	for sid, pid := range s.sessions {
		if pid == presentationID && sid != keep {
			delete(s.sessions, sid)
		}
	}
}

// ---- handlers ----

func (g *WSGateway) onHello(ctx context.Context, client *Client, env v1.Envelope) error {
	var p v1.HelloPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	if tok := strings.TrimSpace(p.Token); tok != "" {
		id, err := g.verifyToken(tok)
		if err != nil {
			g.log.Info("ws.hello.auth.fail", "socket_id", client.ID, "err", err)
			return errors.New("unauthorized")
		}
		client.PresenterID = id
	}

	ack, err := v1.NewEnvelope(v1.TypeHelloAck, g.newID(), env.ID, time.Now().UTC(), v1.HelloAckPayload{
		ConnectionID: client.ID,
		PresenterID:  client.PresenterID,
	})
	if err != nil {
		return err
	}
	if !g.enqueue(ctx, client, ack) {
		return errors.New("backpressure: hello.ack")
	}
	return nil
}

func (g *WSGateway) onJoin(ctx context.Context, s *connState, env v1.Envelope) {
	var p v1.JoinPresentationPayload
	if err := g.decode(env, &p); err != nil {
		g.reply(ctx, s.client, env, v1.TypeJoinResult, v1.JoinResultPayload{Message: join.MsgInvalidRequest})
		return
	}

	res := g.joins.Execute(ctx, join.Request{
		AccessCode:      p.AccessCode,
		ParticipantName: p.ParticipantName,
		SocketID:        s.client.ID,
		ClientIP:        s.clientIP,
	})
	if res.Success {
		pid := res.Presentation.ID
		s.forget(pid, res.SessionID)
		s.sessions[res.SessionID] = pid
		g.hub.Subscribe(pid, broadcast.AudienceParticipants, s.client)
	}
	g.reply(ctx, s.client, env, v1.TypeJoinResult, res.Payload())
}

func (g *WSGateway) onLeave(ctx context.Context, s *connState, env v1.Envelope) {
	var p v1.LeavePresentationPayload
	if err := g.decode(env, &p); err != nil {
		g.reply(ctx, s.client, env, v1.TypeLeaveResult, v1.LeaveResultPayload{Message: join.MsgInvalidRequest})
		return
	}

	// A socket may only leave sessions it joined itself.
	if pid, owned := s.sessions[p.SessionID]; !owned || pid != p.PresentationID {
		g.reply(ctx, s.client, env, v1.TypeLeaveResult, v1.LeaveResultPayload{Message: msgSessionNotFound})
		return
	}

	delete(s.sessions, p.SessionID)
	g.hub.Unsubscribe(p.PresentationID, broadcast.AudienceParticipants, s.client.ID)

	if _, ok := g.joins.Leave(ctx, p.PresentationID, p.SessionID); !ok {
		g.reply(ctx, s.client, env, v1.TypeLeaveResult, v1.LeaveResultPayload{Message: msgSessionNotFound})
		return
	}
	g.reply(ctx, s.client, env, v1.TypeLeaveResult, v1.LeaveResultPayload{Success: true})
}

func (g *WSGateway) onHeartbeat(ctx context.Context, s *connState, env v1.Envelope) {
	var p v1.HeartbeatPayload
	if err := g.decode(env, &p); err != nil {
		g.trySendError(ctx, s.client, env.ID, "bad_payload", err.Error())
		return
	}
	if _, owned := s.sessions[p.SessionID]; !owned {
		g.trySendError(ctx, s.client, env.ID, "unknown_session", msgSessionNotFound)
		return
	}
	if !g.joins.Touch(p.SessionID) {
		// Evicted by the idle sweep.
		delete(s.sessions, p.SessionID)
		g.trySendError(ctx, s.client, env.ID, "unknown_session", msgSessionNotFound)
	}
}

func (g *WSGateway) onWatch(ctx context.Context, client *Client, env v1.Envelope) {
	if !client.IsPresenter() {
		g.trySendError(ctx, client, env.ID, "unauthorized", "presenter token required")
		return
	}

	var p v1.PresenterWatchPayload
	if err := g.decode(env, &p); err != nil {
		g.trySendError(ctx, client, env.ID, "bad_payload", err.Error())
		return
	}

	res := g.controls.Watch(ctx, p.PresentationID, client.PresenterID)
	if res.Success {
		g.hub.Subscribe(p.PresentationID, broadcast.AudiencePresenters, client)
	}
	g.reply(ctx, client, env, v1.TypeControlResult, controlPayload(env.Type, p.PresentationID, res))
}

func (g *WSGateway) onControl(ctx context.Context, client *Client, env v1.Envelope) {
	if !client.IsPresenter() {
		g.trySendError(ctx, client, env.ID, "unauthorized", "presenter token required")
		return
	}

	var (
		pid string
		res control.Result
	)

	if env.Type == v1.TypeControlGotoSlide {
		var p v1.ControlGotoSlidePayload
		if err := g.decode(env, &p); err != nil {
			g.trySendError(ctx, client, env.ID, "bad_payload", err.Error())
			return
		}
		pid = p.PresentationID
		res = g.controls.Goto(ctx, pid, client.PresenterID, *p.SlideIndex)
	} else {
		var p v1.ControlPayload
		if err := g.decode(env, &p); err != nil {
			g.trySendError(ctx, client, env.ID, "bad_payload", err.Error())
			return
		}
		pid = p.PresentationID

		switch env.Type {
		case v1.TypeControlStart:
			res = g.controls.Start(ctx, pid, client.PresenterID)
		case v1.TypeControlStop:
			res = g.controls.Stop(ctx, pid, client.PresenterID)
		case v1.TypeControlNextSlide:
			res = g.controls.Next(ctx, pid, client.PresenterID)
		case v1.TypeControlPrevSlide:
			res = g.controls.Prev(ctx, pid, client.PresenterID)
		}
	}

	// The controlling connection follows the presentation from now on.
	if res.Success {
		g.hub.Subscribe(pid, broadcast.AudiencePresenters, client)
	}
	g.reply(ctx, client, env, v1.TypeControlResult, controlPayload(env.Type, pid, res))
}

func controlPayload(action, presentationID string, res control.Result) v1.ControlResultPayload {
	out := v1.ControlResultPayload{
		Action:         action,
		PresentationID: presentationID,
		Success:        res.Success,
		Message:        res.Message,
	}
	if res.Session.ID != "" {
		idx := res.Session.CurrentSlideIndex
		out.CurrentSlideIndex = &idx
	}
	return out
}

// ---- decode / auth helpers ----

func (g *WSGateway) decode(env v1.Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if err := g.validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func (g *WSGateway) verifyToken(token string) (string, error) {
	if g.verifier == nil {
		return "", errors.New("presenter authentication disabled")
	}
	return g.verifier.Verify(token)
}

// ---- send helpers ----

func (g *WSGateway) reply(ctx context.Context, client *Client, req v1.Envelope, typ string, payload any) {
	env, err := v1.NewEnvelope(typ, g.newID(), req.ID, time.Now().UTC(), payload)
	if err != nil {
		g.log.Error("ws.reply.encode.fail", "socket_id", client.ID, "type", typ, "err", err)
		return
	}
	if !g.enqueue(ctx, client, env) {
		g.log.Info("ws.reply.dropped", "socket_id", client.ID, "type", typ)
	}
}

func (g *WSGateway) trySendError(ctx context.Context, client *Client, corrID, code, msg string) {
	env, err := v1.NewEnvelope(v1.TypeError, g.newID(), corrID, time.Now().UTC(), v1.ErrorPayload{Code: code, Message: msg})
	if err != nil {
		return
	}
	_ = g.enqueue(ctx, client, env)
}

func (g *WSGateway) enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	return client.offer(env)
}

func (g *WSGateway) newID() string {
	return mustEnvelopeID(time.Now().UTC())
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return readErrBadJSON
	}
	if strings.Contains(err.Error(), "unexpected end of JSON input") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.cfg.AllowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.cfg.AllowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			return nil
		}
		if origin == a {
			return nil
		}
		// Host match ignores scheme and port.
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatternsFromAllowedOrigins returns the sorted, deduplicated hosts
// of the allowlist, as websocket.Accept matches OriginPatterns against hosts.
func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	out := make([]string, 0, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		out = append(out, h)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
