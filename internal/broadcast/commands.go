package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"gt06gateway/internal/core/model"
)

// CommandSender routes a command to a live connection or the offline queue
type CommandSender interface {
	SendCommand(ctx context.Context, cmd *model.Command) (string, error)
}

// CommandRequest is the downlink request body
type CommandRequest struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// CommandReply is the downlink reply body
type CommandReply struct {
	Status    string `json:"status"`
	CommandID string `json:"commandId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CommandSubscriber serves command requests on <prefix>.commands.<deviceId>
type CommandSubscriber struct {
	nc      *nats.Conn
	sender  CommandSender
	prefix  string
	timeout time.Duration
	log     zerolog.Logger
}

func NewCommandSubscriber(nc *nats.Conn, sender CommandSender, prefix string, logger zerolog.Logger) *CommandSubscriber {
	return &CommandSubscriber{
		nc:      nc,
		sender:  sender,
		prefix:  prefix,
		timeout: 10 * time.Second,
		log:     logger.With().Str("component", "command_downlink").Logger(),
	}
}

// Start subscribes and blocks until ctx is cancelled
func (s *CommandSubscriber) Start(ctx context.Context) error {
	subject := s.prefix + ".commands.*"
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		reply := s.Handle(ctx, msg.Subject, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			s.log.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to reply to command request")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	s.log.Info().Str("subject", subject).Msg("Command downlink started")

	<-ctx.Done()
	sub.Unsubscribe()
	return nil
}

// Handle decodes one request for the device named by the last subject token and returns the JSON reply
func (s *CommandSubscriber) Handle(ctx context.Context, subject string, data []byte) []byte {
	deviceID := subject[strings.LastIndexByte(subject, '.')+1:]

	var req CommandRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return s.reply(CommandReply{Status: model.CommandStatusError, Error: "invalid request: " + err.Error()})
	}
	if deviceID == "" || req.Type == "" {
		return s.reply(CommandReply{Status: model.CommandStatusError, Error: "device id and command type are required"})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := model.NewCommand(deviceID, req.Type, req.Parameters)
	status, err := s.sender.SendCommand(ctx, cmd)
	if err != nil {
		s.log.Warn().Err(err).Str("device_id", deviceID).Str("command", req.Type).Msg("Command rejected")
		return s.reply(CommandReply{Status: model.CommandStatusError, CommandID: cmd.ID, Error: err.Error()})
	}

	s.log.Info().Str("device_id", deviceID).Str("command", req.Type).Str("status", status).Msg("Command accepted")
	return s.reply(CommandReply{Status: status, CommandID: cmd.ID})
}

func (s *CommandSubscriber) reply(r CommandReply) []byte {
	data, _ := json.Marshal(r)
	return data
}
