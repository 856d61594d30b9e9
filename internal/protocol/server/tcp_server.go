package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"gt06gateway/internal/config"
	"gt06gateway/internal/core/model"
	"gt06gateway/internal/core/util"
	"gt06gateway/internal/protocol/gt06"
)

var (
	ErrConnectionLimit = errors.New("connection limit reached")
	ErrDeviceOffline   = errors.New("device offline and no command queue configured")
)

// EventSink receives the semantic events decoded from device connections
type EventSink interface {
	OnLogin(ctx context.Context, session *model.DeviceSession)
	OnPosition(ctx context.Context, pos *model.Position)
	OnStatus(ctx context.Context, pos *model.Position)
	OnDisconnect(ctx context.Context, deviceID string)
}

// CommandQueue holds commands for devices that are not connected
type CommandQueue interface {
	QueueCommand(ctx context.Context, cmd *model.Command) (string, error)
	PendingCommands(ctx context.Context, deviceID string) ([]*model.Command, error)
}

// Stats is a snapshot of the server counters
type Stats struct {
	ActiveConnections int       `json:"activeConnections"`
	Sessions          int       `json:"sessions"`
	FramesProcessed   uint64    `json:"framesProcessed"`
	Errors            uint64    `json:"errors"`
	StartedAt         time.Time `json:"startedAt"`
	UptimeSeconds     float64   `json:"uptimeSeconds"`
}

// TCPServer accepts GT06 device connections, drives the frame loop for each
// one and keeps the device session map.
type TCPServer struct {
	cfg     config.ServerConfig
	decoder *gt06.Decoder
	encoder *gt06.Encoder
	events  EventSink
	queue   CommandQueue
	log     zerolog.Logger
	now     func() time.Time

	mutex    sync.Mutex
	listener net.Listener
	conns    map[string]*connection
	sessions map[string]*connection

	frames   atomic.Uint64
	failures atomic.Uint64
	started  time.Time

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewTCPServer creates a server. queue may be nil, in which case commands for
// offline devices are rejected.
func NewTCPServer(cfg config.ServerConfig, decoder *gt06.Decoder, encoder *gt06.Encoder,
	events EventSink, queue CommandQueue, logger zerolog.Logger) *TCPServer {
	return &TCPServer{
		cfg:      cfg,
		decoder:  decoder,
		encoder:  encoder,
		events:   events,
		queue:    queue,
		log:      logger.With().Str("component", "gt06_server").Logger(),
		now:      time.Now,
		conns:    make(map[string]*connection),
		sessions: make(map[string]*connection),
		started:  time.Now(),
		done:     make(chan struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled or Stop is called.
func (s *TCPServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. It returns nil once the server is stopped.
func (s *TCPServer) Serve(ctx context.Context, ln net.Listener) error {
	s.mutex.Lock()
	s.listener = ln
	s.mutex.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).
		Int("max_connections", s.cfg.MaxConnections).
		Dur("idle_timeout", s.cfg.IdleTimeout).
		Msg("GT06 server listening")

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()
	go s.sweepLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error().Err(err).Msg("Error accepting connection")
			continue
		}
		s.accept(ctx, conn)
	}
}

// Stop closes the listener and every connection, then waits for the
// connection goroutines to finish.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)

		s.mutex.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		conns := make([]*connection, 0, len(s.conns))
		for _, c := range s.conns {
			conns = append(conns, c)
		}
		s.mutex.Unlock()

		for _, c := range conns {
			c.close()
		}
		s.wg.Wait()
		s.log.Info().Msg("GT06 server stopped")
	})
}

func (s *TCPServer) accept(ctx context.Context, conn net.Conn) {
	c := newConnection(util.GenerateID(), conn, s.now())

	s.mutex.Lock()
	select {
	case <-s.done:
		s.mutex.Unlock()
		conn.Close()
		return
	default:
	}
	if s.cfg.MaxConnections > 0 && len(s.conns) >= s.cfg.MaxConnections {
		s.mutex.Unlock()
		s.failures.Add(1)
		s.log.Warn().Err(ErrConnectionLimit).Str("remote", c.remote).Msg("Connection refused")
		conn.Close()
		return
	}
	s.conns[c.id] = c
	s.wg.Add(1)
	s.mutex.Unlock()

	s.log.Info().Str("conn_id", c.id).Str("remote", c.remote).Msg("New connection")
	go s.handle(ctx, c)
}

func (s *TCPServer) handle(ctx context.Context, c *connection) {
	defer s.wg.Done()
	defer s.release(ctx, c)
	defer c.close()

	log := s.log.With().Str("conn_id", c.id).Str("remote", c.remote).Logger()

	chunk := make([]byte, s.cfg.ReadBufferSize)
	buf := make([]byte, 0, s.cfg.ReadBufferSize)
	for {
		n, err := c.conn.Read(chunk)
		if n > 0 {
			var perr error
			buf = append(buf, chunk[:n]...)
			if buf, perr = s.process(ctx, c, buf); perr != nil {
				log.Warn().Err(perr).Msg("Closing connection after write failure")
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Info().Msg("Connection closed by device")
			case errors.Is(err, net.ErrClosed):
				log.Debug().Msg("Connection closed")
			default:
				log.Warn().Err(err).Msg("Read error")
			}
			return
		}
	}
}

// process extracts and handles every complete frame at the front of buf and
// returns what is left for the next read.
func (s *TCPServer) process(ctx context.Context, c *connection, buf []byte) ([]byte, error) {
	if s.cfg.MaxBufferSize > 0 && len(buf) > s.cfg.MaxBufferSize {
		s.failures.Add(1)
		s.log.Warn().Str("conn_id", c.id).Int("bytes", len(buf)).Msg("Buffer limit exceeded, discarding")
		return buf[:0], nil
	}

	for i := 0; len(buf) > 0; i++ {
		if i >= s.cfg.MaxIterations {
			s.failures.Add(1)
			s.log.Warn().Str("conn_id", c.id).Int("bytes", len(buf)).Msg("Frame iteration cap reached, discarding")
			return buf[:0], nil
		}

		raw, n, err := gt06.ReadFrame(buf)
		switch {
		case errors.Is(err, gt06.ErrIncompleteFrame):
			return compact(buf), nil
		case errors.Is(err, gt06.ErrFrameSync):
			s.log.Debug().Str("conn_id", c.id).Int("bytes", n).Msg("Discarding bytes before header")
			buf = buf[n:]
			continue
		}

		if err := s.handleFrame(ctx, c, raw); err != nil {
			return buf[:0], err
		}
		buf = buf[n:]
	}
	return buf[:0], nil
}

// compact copies the unread tail so the consumed prefix is not retained
func compact(buf []byte) []byte {
	return append(buf[:0:0], buf...)
}

func (s *TCPServer) handleFrame(ctx context.Context, c *connection, raw []byte) error {
	s.frames.Add(1)
	c.touch(s.now())

	msg, err := s.decoder.Decode(ctx, raw, c.deviceID)
	if msg == nil {
		s.failures.Add(1)
		s.log.Debug().Err(err).Str("conn_id", c.id).Msg("Dropping frame")
		return nil
	}
	if err != nil {
		s.failures.Add(1)
		s.log.Warn().Err(err).
			Str("conn_id", c.id).
			Str("device_id", c.deviceID).
			Str("msg_type", gt06.GetMessageTypeName(msg.Type)).
			Msg("Frame not decoded")
	}

	var session model.DeviceSession
	if msg.Kind == gt06.KindLogin {
		session = s.bindSession(c, msg.IMEI)
	}

	if msg.Response != nil {
		if err := c.write(msg.Response, s.cfg.WriteTimeout); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	switch msg.Kind {
	case gt06.KindLogin:
		s.log.Info().Str("conn_id", c.id).Str("device_id", msg.IMEI).Msg("Device logged in")
		s.events.OnLogin(ctx, &session)
		return s.drainCommands(ctx, c, msg.IMEI)
	case gt06.KindPosition, gt06.KindAlarm, gt06.KindLBS, gt06.KindWifi:
		if msg.Position != nil {
			msg.Position.Set(model.AttrVariant, string(msg.Variant))
			s.events.OnPosition(ctx, msg.Position)
		}
	case gt06.KindHeartbeat, gt06.KindStatus, gt06.KindStringInfo:
		if msg.Position != nil {
			s.events.OnStatus(ctx, msg.Position)
		}
	}
	return nil
}

// bindSession makes c the live connection of deviceID. An earlier connection
// loses the session but stays open until its own read error or idle timeout.
func (s *TCPServer) bindSession(c *connection, deviceID string) model.DeviceSession {
	s.mutex.Lock()
	if c.deviceID != "" && c.deviceID != deviceID && s.sessions[c.deviceID] == c {
		delete(s.sessions, c.deviceID)
	}
	prior := s.sessions[deviceID]
	s.sessions[deviceID] = c
	c.deviceID = deviceID
	s.mutex.Unlock()

	if prior != nil && prior != c {
		s.log.Info().Str("device_id", deviceID).
			Str("conn_id", c.id).
			Str("replaced_conn_id", prior.id).
			Msg("Session replaced by new connection")
	}
	return c.session(deviceID)
}

// release removes c from the connection map and, when it still owns its
// device session, drops the session and reports the disconnect. It is safe to
// call more than once.
func (s *TCPServer) release(ctx context.Context, c *connection) {
	s.mutex.Lock()
	_, tracked := s.conns[c.id]
	delete(s.conns, c.id)
	deviceID := c.deviceID
	owned := deviceID != "" && s.sessions[deviceID] == c
	if owned {
		delete(s.sessions, deviceID)
	}
	s.mutex.Unlock()

	if !tracked {
		return
	}
	s.log.Info().Str("conn_id", c.id).Str("device_id", deviceID).Msg("Connection released")
	if owned {
		s.events.OnDisconnect(context.WithoutCancel(ctx), deviceID)
	}
}

func (s *TCPServer) drainCommands(ctx context.Context, c *connection, deviceID string) error {
	if s.queue == nil {
		return nil
	}
	commands, err := s.queue.PendingCommands(ctx, deviceID)
	if err != nil {
		s.log.Error().Err(err).Str("device_id", deviceID).Msg("Failed to load queued commands")
		return nil
	}

	for i, cmd := range commands {
		frame, err := s.encoder.EncodeCommand(cmd)
		if err != nil {
			s.log.Warn().Err(err).Str("device_id", deviceID).Str("command", cmd.Type).Msg("Dropping queued command")
			continue
		}
		if err := c.write(frame, s.cfg.WriteTimeout); err != nil {
			s.requeue(ctx, commands[i:])
			return fmt.Errorf("write queued command: %w", err)
		}
		s.log.Info().Str("device_id", deviceID).Str("command", cmd.Type).Str("command_id", cmd.ID).Msg("Queued command delivered")
	}
	return nil
}

func (s *TCPServer) requeue(ctx context.Context, commands []*model.Command) {
	for _, cmd := range commands {
		if _, err := s.queue.QueueCommand(ctx, cmd); err != nil {
			s.log.Error().Err(err).Str("device_id", cmd.DeviceID).Str("command_id", cmd.ID).Msg("Failed to requeue command")
		}
	}
}

// SendCommand encodes cmd and writes it to the device's live connection, or
// queues it when the device is not connected. It returns the delivery status.
// Encoding errors are returned before anything is written or queued.
func (s *TCPServer) SendCommand(ctx context.Context, cmd *model.Command) (string, error) {
	frame, err := s.encoder.EncodeCommand(cmd)
	if err != nil {
		return "", err
	}

	log := s.log.With().Str("device_id", cmd.DeviceID).Str("command", cmd.Type).Str("command_id", cmd.ID).Logger()

	if c := s.connectionFor(cmd.DeviceID); c != nil {
		err := c.write(frame, s.cfg.WriteTimeout)
		if err == nil {
			cmd.Status = model.CommandStatusSent
			log.Info().Str("conn_id", c.id).Msg("Command sent")
			return model.CommandStatusSent, nil
		}
		log.Warn().Err(err).Str("conn_id", c.id).Msg("Command write failed, closing connection")
		c.close()
	}

	if s.queue == nil {
		return "", ErrDeviceOffline
	}
	if _, err := s.queue.QueueCommand(ctx, cmd); err != nil {
		return "", fmt.Errorf("queue command: %w", err)
	}
	cmd.Status = model.CommandStatusQueued
	log.Info().Msg("Command queued for offline device")
	return model.CommandStatusQueued, nil
}

func (s *TCPServer) connectionFor(deviceID string) *connection {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.sessions[deviceID]
}

func (s *TCPServer) sweepLoop() {
	if s.cfg.SweepInterval <= 0 || s.cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.SweepIdle(s.now()); n > 0 {
				s.log.Info().Int("closed", n).Msg("Idle connections swept")
			}
		}
	}
}

// SweepIdle closes every connection without activity for longer than the idle
// timeout and returns how many were closed.
func (s *TCPServer) SweepIdle(now time.Time) int {
	s.mutex.Lock()
	var idle []*connection
	for _, c := range s.conns {
		if now.Sub(c.idleSince()) > s.cfg.IdleTimeout {
			idle = append(idle, c)
			s.log.Info().Str("conn_id", c.id).Str("device_id", c.deviceID).Msg("Closing idle connection")
		}
	}
	s.mutex.Unlock()

	for _, c := range idle {
		c.close()
		s.release(context.Background(), c)
	}
	return len(idle)
}

// Stats returns the current counters
func (s *TCPServer) Stats() Stats {
	s.mutex.Lock()
	conns, sessions := len(s.conns), len(s.sessions)
	s.mutex.Unlock()

	return Stats{
		ActiveConnections: conns,
		Sessions:          sessions,
		FramesProcessed:   s.frames.Load(),
		Errors:            s.failures.Load(),
		StartedAt:         s.started.UTC(),
		UptimeSeconds:     s.now().Sub(s.started).Seconds(),
	}
}

// Sessions lists the live device sessions ordered by device id
func (s *TCPServer) Sessions() []model.DeviceSession {
	s.mutex.Lock()
	out := make([]model.DeviceSession, 0, len(s.sessions))
	for deviceID, c := range s.sessions {
		out = append(out, c.session(deviceID))
	}
	s.mutex.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Session returns the live session of deviceID, if any
func (s *TCPServer) Session(deviceID string) (model.DeviceSession, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, ok := s.sessions[deviceID]
	if !ok {
		return model.DeviceSession{}, false
	}
	return c.session(deviceID), true
}
