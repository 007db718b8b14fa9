package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/biz/repo"
	"github.com/devricklin/fanwatch-bridge/internal/biz/usecase"
	"github.com/devricklin/fanwatch-bridge/internal/infra/upstream"
	"github.com/devricklin/fanwatch-bridge/internal/telemetry"
)

const notifyTimeout = 10 * time.Second

var (
	keepAliveFrame = []byte(`{"act":"get_onlines","token":"[1]"}`)

	// Fallback for auth responses that are not valid JSON or carry a quoted flag
	connectedPattern = regexp.MustCompile(`"connected"\s*:\s*(true|"true")`)
)

// SessionConfig holds connection tuning for account sessions
type SessionConfig struct {
	Endpoint    string
	MaxAttempts int
	Backoff     time.Duration
	KeepAlive   time.Duration
	AuthTimeout time.Duration
}

// DefaultSessionConfig returns the production defaults
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Endpoint:    upstream.DefaultEndpoint,
		MaxAttempts: 5,
		Backoff:     5 * time.Second,
		KeepAlive:   30 * time.Second,
		AuthTimeout: 15 * time.Second,
	}
}

// AccountSource returns the current settings of an account
type AccountSource interface {
	Account(key domain.AccountKey) (domain.Account, bool)
}

// Session keeps one upstream stream alive for one account and routes
// its events into operator notifications
type Session struct {
	id     string
	key    domain.AccountKey
	token  string
	config SessionConfig

	dialer     upstream.Dialer
	accounts   AccountSource
	router     *usecase.EventRouter
	notifyRepo repo.NotifyRepo

	mu            sync.Mutex
	state         domain.SessionState
	attempts      int
	started       bool
	attemptCancel context.CancelFunc

	reconnectCh chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
}

// NewSession creates a new idle session
func NewSession(
	key domain.AccountKey,
	token string,
	config SessionConfig,
	dialer upstream.Dialer,
	accounts AccountSource,
	router *usecase.EventRouter,
	notifyRepo repo.NotifyRepo,
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:          uuid.NewString()[:8],
		key:         key,
		token:       token,
		config:      config,
		dialer:      dialer,
		accounts:    accounts,
		router:      router,
		notifyRepo:  notifyRepo,
		state:       domain.StateIdle,
		reconnectCh: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Key returns the account key
func (s *Session) Key() domain.AccountKey {
	return s.key
}

// State returns the current state
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns the consecutive failure count
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Start launches the session worker. It returns immediately.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started || s.state == domain.StateClosed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	fmt.Printf("[Session %s] Starting for %s\n", s.id, s.key)
	go s.run()
}

// Reconnect drops the current stream, resets the attempt counter and
// connects again right away. It is ignored once the session is closed.
func (s *Session) Reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateClosed {
		return
	}
	s.attempts = 0
	// Signal before cancelling so the worker sees the request when the stream ends
	select {
	case s.reconnectCh <- struct{}{}:
	default:
	}
	if s.attemptCancel != nil {
		s.attemptCancel()
	}
	fmt.Printf("[Session %s] Reconnect requested for %s\n", s.id, s.key)
}

// Close stops the session and notifies the operator. Safe to call more than once.
func (s *Session) Close() {
	s.shutdown(true)
}

// closeQuietly stops the session without the "stopped" notification
func (s *Session) closeQuietly() {
	s.shutdown(false)
}

// stop marks the session closed and cancels the worker without waiting for it.
// The registry calls it under its lock; Close or closeQuietly finish the job later.
func (s *Session) stop() {
	s.mu.Lock()
	s.state = domain.StateClosed
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) shutdown(announce bool) {
	s.closeOnce.Do(func() {
		s.stop()

		s.mu.Lock()
		started := s.started
		s.mu.Unlock()

		if started {
			<-s.done
		}
		fmt.Printf("[Session %s] Closed %s\n", s.id, s.key)

		if announce {
			s.notify(usecase.NotifyStatus, "Monitoring stopped")
		}
	})
}

// run is the session worker loop
func (s *Session) run() {
	defer close(s.done)

	for {
		err := s.connectAndStream()
		if s.ctx.Err() != nil {
			return
		}

		select {
		case <-s.reconnectCh:
			continue
		default:
		}

		fmt.Printf("[Session %s] Connection for %s ended: %v\n", s.id, s.key, err)

		s.mu.Lock()
		// attempts counts reconnects after the initial try, so Failed is reached
		// after MaxAttempts+1 consecutive failed connections
		if s.attempts >= s.config.MaxAttempts {
			s.setStateLocked(domain.StateFailed)
			attempts := s.attempts
			s.mu.Unlock()

			telemetry.Inc(telemetry.SessionsFailed)
			s.notify(usecase.NotifyStatus, fmt.Sprintf("Connection failed after %d attempts: %v. Use /reconnect %s to try again", attempts, err, s.key.AccountName))
			if !s.waitForReconnect() {
				return
			}
			continue
		}
		s.attempts++
		attempt := s.attempts
		s.setStateLocked(domain.StateReconnecting)
		s.mu.Unlock()

		telemetry.Inc(telemetry.ReconnectAttempts)
		if attempt == 1 {
			s.notify(usecase.NotifyStatus, fmt.Sprintf("Connection lost, reconnecting (attempt %d/%d)", attempt, s.config.MaxAttempts))
		}
		if !s.backoff() {
			return
		}
	}
}

// backoff waits out the retry delay. It returns false when the session closed.
func (s *Session) backoff() bool {
	timer := time.NewTimer(s.config.Backoff)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case <-s.reconnectCh:
		return true
	case <-timer.C:
		return true
	}
}

// waitForReconnect parks a failed session until Reconnect or Close
func (s *Session) waitForReconnect() bool {
	select {
	case <-s.ctx.Done():
		return false
	case <-s.reconnectCh:
		return true
	}
}

// connectAndStream runs one connection attempt until it fails or is cancelled
func (s *Session) connectAndStream() error {
	attemptCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.mu.Lock()
	if s.state == domain.StateClosed {
		s.mu.Unlock()
		return context.Canceled
	}
	s.attemptCancel = cancel
	s.setStateLocked(domain.StateConnecting)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.attemptCancel = nil
		s.mu.Unlock()
	}()

	stream, err := s.dialer.Dial(attemptCtx, s.config.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStreamIO, err)
	}
	defer stream.Close()
	stop := context.AfterFunc(attemptCtx, func() { stream.Close() })
	defer stop()

	if err := s.authenticate(attemptCtx, stream); err != nil {
		return err
	}

	s.mu.Lock()
	s.attempts = 0
	s.setStateLocked(domain.StateStreaming)
	s.mu.Unlock()

	telemetry.Inc(telemetry.ConnectionsEstablished)
	fmt.Printf("[Session %s] Streaming %s\n", s.id, s.key)
	s.notify(usecase.NotifyStatus, "Connected, monitoring started")

	return s.pump(attemptCtx, stream)
}

func (s *Session) authenticate(ctx context.Context, stream upstream.Stream) error {
	s.setState(domain.StateAuthenticating)

	frame, err := json.Marshal(map[string]string{"act": "connect", "token": s.token})
	if err != nil {
		return fmt.Errorf("encode auth frame: %w", err)
	}
	if err := stream.WriteText(ctx, frame); err != nil {
		return fmt.Errorf("%w: send auth: %v", domain.ErrStreamIO, err)
	}

	if err := stream.SetReadDeadline(time.Now().Add(s.config.AuthTimeout)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStreamIO, err)
	}
	resp, err := stream.ReadText()
	if err != nil {
		return fmt.Errorf("%w: read auth response: %v", domain.ErrStreamIO, err)
	}
	if !authAccepted(resp) {
		return fmt.Errorf("%w: %s", domain.ErrAuthRejected, usecase.TruncatePayload(string(resp)))
	}
	if err := stream.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStreamIO, err)
	}
	return nil
}

// pump processes frames in order and sends keep-alives from the same goroutine
func (s *Session) pump(ctx context.Context, stream upstream.Stream) error {
	ctx, cancel := context.WithCancel(ctx)
	frames := make(chan []byte)
	readErr := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			data, err := stream.ReadText()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer func() {
		cancel()
		stream.Close()
		wg.Wait()
	}()

	ticker := time.NewTicker(s.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-frames:
			s.handleFrame(ctx, data)
		case err := <-readErr:
			if upstream.IsClosed(err) {
				return fmt.Errorf("%w: stream closed: %v", domain.ErrStreamIO, err)
			}
			return fmt.Errorf("%w: read: %v", domain.ErrStreamIO, err)
		case <-ticker.C:
			if err := stream.WriteText(ctx, keepAliveFrame); err != nil {
				return fmt.Errorf("%w: keep-alive: %v", domain.ErrStreamIO, err)
			}
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) {
	event := usecase.Decode(data)
	telemetry.CountEvent(domain.EventKind(event))

	account, ok := s.accounts.Account(s.key)
	if !ok {
		account = domain.Account{Key: s.key, Token: s.token}
	}

	n, ok := s.router.Route(ctx, account, event)
	if !ok {
		return
	}
	s.notify(n.Kind, n.Text)
}

// notify delivers text to the operator. Failures never affect the connection.
func (s *Session) notify(kind, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := s.notifyRepo.Send(ctx, s.key.OperatorID, s.key.AccountName, text); err != nil {
		fmt.Printf("[Session %s] Failed to notify operator %d: %v\n", s.id, s.key.OperatorID, err)
		telemetry.CountNotification(kind, false)
		return
	}
	telemetry.CountNotification(kind, true)
}

func (s *Session) setState(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(state)
}

// setStateLocked never leaves Closed
func (s *Session) setStateLocked(state domain.SessionState) {
	if s.state == domain.StateClosed {
		return
	}
	s.state = state
}

// authAccepted reports whether the first inbound frame accepted the token
func authAccepted(frame []byte) bool {
	var resp struct {
		Connected bool   `json:"connected"`
		Version   string `json:"v"`
	}
	if err := json.Unmarshal(frame, &resp); err == nil {
		return resp.Connected
	}
	return connectedPattern.Match(frame)
}
