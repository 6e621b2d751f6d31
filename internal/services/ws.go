package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

const writeWait = 10 * time.Second

// --- Transport ---

// Conn is one event-channel session with the server.
type Conn interface {
	ReadEnvelope() (model.Envelope, error)
	WriteEnvelope(env model.Envelope) error
	Close() error
}

// Transport opens sessions to the server.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// WSTransport dials the server over a websocket carrying JSON envelopes.
type WSTransport struct {
	URL              string
	APIKey           string
	HandshakeTimeout time.Duration
}

func (t *WSTransport) Dial(ctx context.Context) (Conn, error) {
	target, err := websocketURL(t.URL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if t.APIKey != "" {
		header.Add("X-Api-Key", t.APIKey)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// websocketURL accepts http(s) server URLs and maps them onto ws(s).
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

type wsConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *wsConn) ReadEnvelope() (model.Envelope, error) {
	var env model.Envelope
	err := c.conn.ReadJSON(&env)
	return env, err
}

// WriteEnvelope is safe for concurrent use; gorilla allows one writer at a time.
func (c *wsConn) WriteEnvelope(env model.Envelope) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(env)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// --- Supervisor ---

var (
	ErrRegistrationTimeout  = errors.New("registration timed out")
	ErrRegistrationRejected = errors.New("registration rejected")
	ErrConnectionDropped    = errors.New("connection dropped")
)

// JobSubmitter receives decoded print jobs.
type JobSubmitter interface {
	Submit(job model.Job) error
}

// CommandSubmitter runs raw printer_command payloads on the device.
type CommandSubmitter interface {
	SubmitCommand(cmd model.PrinterCommandEvent, done func(error))
}

// DeviceStatus reports device liveness for registration and health checks.
type DeviceStatus interface {
	Alive() bool
}

type Backoff interface {
	Delay(attempt int) time.Duration
}

type SupervisorOptions struct {
	Transport Transport
	Jobs      JobSubmitter
	Commands  CommandSubmitter
	Device    DeviceStatus
	Printer   model.PrinterConfig
	SessionID string

	RegistrationTimeout time.Duration
	PingInterval        time.Duration
	PongWait            time.Duration
	Reconnect           Backoff
	RegistrationRetry   Backoff

	Metrics StateMetrics
	Logger  *slog.Logger
	Now     func() time.Time

	// OnRegistrationRetry, when set, observes every scheduled registration retry.
	OnRegistrationRetry func(attempt int, delay time.Duration)
}

// StateMetrics is the part of the metrics collector the supervisor feeds.
type StateMetrics interface {
	SetConnectionState(state int)
	RecordReconnect()
	RecordRegistration(result string)
	SetOutboxDepth(n int)
}

// Supervisor keeps the server session alive: it dials, registers, heartbeats,
// routes inbound events and delivers result events, queueing them while inactive.
type Supervisor struct {
	opts   SupervisorOptions
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	state  model.ConnState
	outbox []model.Envelope
	wake   chan struct{}
}

func NewSupervisor(opts SupervisorOptions) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Supervisor{
		opts:   opts,
		logger: logger.With("printer", opts.Printer.Name),
		now:    now,
		wake:   make(chan struct{}, 1),
	}
}

func (s *Supervisor) State() model.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports how many result events wait for an active session.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

func (s *Supervisor) setState(st model.ConnState) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.logger.Debug("connection state", "from", prev, "to", st)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.SetConnectionState(int(st))
	}
}

// Report queues the job result and wakes the session to deliver it.
func (s *Supervisor) Report(jobID string, res model.PrintResult) {
	if err := s.enqueue(model.PrintResultEvent(jobID), res); err != nil {
		s.logger.Error("encode print result", "job", jobID, "err", err)
	}
}

func (s *Supervisor) enqueue(event model.EventName, data any) error {
	env, err := model.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.outbox = append(s.outbox, env)
	depth := len(s.outbox)
	s.mu.Unlock()
	if s.opts.Metrics != nil {
		s.opts.Metrics.SetOutboxDepth(depth)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run dials and serves sessions until ctx is cancelled. Connection and
// registration failures are retried forever with capped backoff.
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			s.setState(model.StateDisconnected)
			return nil
		}

		s.setState(model.StateConnecting)
		s.logger.Info("connecting to server", "url", s.serverURL())
		conn, err := s.opts.Transport.Dial(ctx)
		if err == nil {
			s.logger.Info("connected")
			var reachedActive bool
			reachedActive, err = s.serve(ctx, conn)
			_ = conn.Close()
			if reachedActive {
				attempt = 0
			}
		}
		s.setState(model.StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}

		attempt++
		delay := s.opts.Reconnect.Delay(attempt)
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordReconnect()
		}
		s.logger.Warn("disconnected, reconnecting", "err", err, "attempt", attempt, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.setState(model.StateDisconnected)
			return nil
		}
	}
}

func (s *Supervisor) serverURL() string {
	if t, ok := s.opts.Transport.(*WSTransport); ok {
		return t.URL
	}
	return ""
}

// serve runs one session. It returns whether the session reached ACTIVE and
// the reason it ended.
func (s *Supervisor) serve(ctx context.Context, conn Conn) (bool, error) {
	done := make(chan struct{})
	defer close(done)

	events := make(chan model.Envelope)
	readErr := make(chan error, 1)
	go func() {
		for {
			env, err := conn.ReadEnvelope()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case events <- env:
			case <-done:
				return
			}
		}
	}()

	var (
		active     bool
		regAttempt int
		regTimeout <-chan time.Time
		regRetry   <-chan time.Time
		heartbeat  <-chan time.Time
		// pongDue is armed when a ping goes out and disarmed by any inbound event.
		pongDue    <-chan time.Time
		pingSentAt time.Time
	)

	register := func() error {
		s.setState(model.StateRegistering)
		reg := BuildRegistration(s.opts.Printer, s.opts.SessionID, s.deviceAlive(), s.now())
		if err := s.send(conn, model.EventRegisterPrinter, reg); err != nil {
			return err
		}
		s.logger.Info("registration sent", "printer_id", reg.PrinterID, "status", reg.Status)
		regTimeout = time.After(s.opts.RegistrationTimeout)
		regRetry = nil
		return nil
	}
	retryRegistration := func(reason error) {
		regAttempt++
		delay := s.opts.RegistrationRetry.Delay(regAttempt)
		s.logger.Warn("registration failed, retrying", "err", reason, "attempt", regAttempt, "delay", delay)
		if s.opts.OnRegistrationRetry != nil {
			s.opts.OnRegistrationRetry(regAttempt, delay)
		}
		regTimeout = nil
		regRetry = time.After(delay)
	}

	if err := register(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrConnectionDropped, err)
	}

	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return active, ctx.Err()

		case err := <-readErr:
			return active, fmt.Errorf("%w: %v", ErrConnectionDropped, err)

		case <-regTimeout:
			s.recordRegistration("timeout")
			retryRegistration(ErrRegistrationTimeout)

		case <-regRetry:
			if err := register(); err != nil {
				return active, fmt.Errorf("%w: %v", ErrConnectionDropped, err)
			}

		case <-heartbeat:
			if pongDue != nil {
				continue
			}
			if err := s.send(conn, model.EventPing, nil); err != nil {
				return active, fmt.Errorf("%w: %v", ErrConnectionDropped, err)
			}
			pingSentAt = s.now()
			pongDue = time.After(s.opts.PongWait)

		case <-pongDue:
			wait := s.now().Sub(pingSentAt)
			return active, fmt.Errorf("%w: no reply to ping for %s", ErrConnectionDropped, wait.Round(time.Millisecond))

		case <-s.wake:
			if active {
				if err := s.flush(conn); err != nil {
					return active, fmt.Errorf("%w: %v", ErrConnectionDropped, err)
				}
			}

		case env := <-events:
			pongDue = nil
			switch env.Event {
			case model.EventRegistrationSuccess:
				if active {
					continue
				}
				active = true
				regAttempt = 0
				regTimeout, regRetry = nil, nil
				s.recordRegistration("success")
				s.setState(model.StateActive)
				s.logger.Info("successfully registered with server")
				ticker = time.NewTicker(s.opts.PingInterval)
				heartbeat = ticker.C
				if err := s.flush(conn); err != nil {
					return active, fmt.Errorf("%w: %v", ErrConnectionDropped, err)
				}

			case model.EventRegistrationFailed, model.EventRegistrationError:
				if active {
					continue
				}
				var ack model.RegistrationAck
				_ = env.Decode(&ack)
				s.recordRegistration("rejected")
				retryRegistration(fmt.Errorf("%w: %s%s", ErrRegistrationRejected, ack.Message, ack.Error))

			case model.EventPing:
				if err := s.send(conn, model.EventPong, nil); err != nil {
					return active, fmt.Errorf("%w: %v", ErrConnectionDropped, err)
				}

			case model.EventPong:

			case model.EventPrintJob:
				s.handlePrintJob(env)

			case model.EventPrinterCommand:
				s.handlePrinterCommand(env)

			case model.EventHealthCheck:
				if err := s.send(conn, model.EventHealthResponse, s.health(active)); err != nil {
					return active, fmt.Errorf("%w: %v", ErrConnectionDropped, err)
				}

			case model.EventUnregister:
				s.logger.Info("server requested unregister")
				return active, nil

			default:
				s.logger.Debug("unknown event", "event", env.Event)
			}
		}
	}
}

func (s *Supervisor) handlePrintJob(env model.Envelope) {
	ev, decodeErr := model.DecodePrintJob(env.Data)
	if decodeErr != nil && ev.JobID == "" {
		s.logger.Error("error parsing print_job", "err", decodeErr)
		return
	}
	if ev.PrinterID != "" && ev.PrinterID != s.opts.Printer.ID {
		s.logger.Debug("ignoring job for another printer", "job", ev.JobID, "target", ev.PrinterID)
		return
	}
	job := ev.Job(s.now())
	if decodeErr != nil {
		s.logger.Warn("invalid print_job payload", "job", ev.JobID, "err", decodeErr)
		job.PayloadErr = decodeErr
	}
	if err := s.opts.Jobs.Submit(job); err != nil {
		s.logger.Warn("print job not accepted", "job", ev.JobID, "err", err)
	}
}

func (s *Supervisor) handlePrinterCommand(env model.Envelope) {
	var cmd model.PrinterCommandEvent
	if err := env.Decode(&cmd); err != nil {
		s.logger.Error("error parsing printer_command", "err", err)
		s.commandResult(fmt.Errorf("invalid payload: %w", err))
		return
	}
	if cmd.PrinterID != "" && cmd.PrinterID != s.opts.Printer.ID {
		s.logger.Debug("ignoring command for another printer", "target", cmd.PrinterID)
		return
	}
	if s.opts.Commands == nil {
		s.commandResult(errors.New("printer commands are not supported"))
		return
	}
	s.logger.Info("printer command received", "type", cmd.Type, "bytes", len(cmd.Command))
	s.opts.Commands.SubmitCommand(cmd, s.commandResult)
}

// commandResult queues the command_result event; it may run on the device worker.
func (s *Supervisor) commandResult(err error) {
	res := model.CommandResult{
		PrinterID:     s.opts.Printer.ID,
		CommandStatus: model.CommandCompleted,
		Timestamp:     s.now().Format(model.TimestampLayout),
	}
	if err != nil {
		res.CommandStatus = model.CommandFailed
		res.Message = err.Error()
		s.logger.Warn("printer command failed", "err", err)
	}
	if err := s.enqueue(model.EventCommandResult, res); err != nil {
		s.logger.Error("encode command result", "err", err)
	}
}

// flush writes queued results in order; a failed write keeps the remainder queued.
func (s *Supervisor) flush(conn Conn) error {
	for {
		s.mu.Lock()
		if len(s.outbox) == 0 {
			s.mu.Unlock()
			return nil
		}
		env := s.outbox[0]
		s.mu.Unlock()

		if err := conn.WriteEnvelope(env); err != nil {
			return err
		}

		s.mu.Lock()
		s.outbox = s.outbox[1:]
		depth := len(s.outbox)
		s.mu.Unlock()
		if s.opts.Metrics != nil {
			s.opts.Metrics.SetOutboxDepth(depth)
		}
	}
}

func (s *Supervisor) send(conn Conn, event model.EventName, data any) error {
	env, err := model.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	return conn.WriteEnvelope(env)
}

func (s *Supervisor) health(active bool) model.HealthResponse {
	alive := s.deviceAlive()
	status := model.StatusOnline
	if !alive {
		status = model.StatusOffline
	}
	return model.HealthResponse{
		PrinterID:        s.opts.Printer.ID,
		Status:           status,
		DeviceConnected:  alive,
		ActiveConnection: active,
		Timestamp:        s.now().Format(model.TimestampLayout),
	}
}

func (s *Supervisor) deviceAlive() bool {
	return s.opts.Device != nil && s.opts.Device.Alive()
}

func (s *Supervisor) recordRegistration(result string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRegistration(result)
	}
}

// describeState is used by the status endpoint.
func describeState(st model.ConnState) string {
	return strings.ToLower(st.String())
}
