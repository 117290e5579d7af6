package mqttcmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BrandonDHaskell/Portunus/unit/internal/config"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
)

// commandBacklog bounds commands received but not yet executed; the
// broker callback drops anything beyond it.
const commandBacklog = 64

// Service executes commands arriving on the command topic, at most
// cfg.RatePerSecond per second, and publishes their replies.
type Service struct {
	transport Transport
	parser    *Parser
	cfg       config.MQTTConfig
	unitID    string
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func NewService(transport Transport, parser *Parser, cfg config.MQTTConfig, unitID string, logger *zap.Logger) *Service {
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Service{
		transport: transport,
		parser:    parser,
		cfg:       cfg,
		unitID:    unitID,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger.Named("mqttcmd"),
	}
}

// Run serves commands until ctx is done. It subscribes to the command topic
// once the broker is reachable and again after every lost connection.
func (s *Service) Run(ctx context.Context) {
	poll := s.cfg.RetryInterval
	if poll <= 0 {
		poll = time.Second
	}
	commands := make(chan string, commandBacklog)
	for {
		if s.transport.IsConnected() {
			s.serve(ctx, commands, poll)
		}
		if !taskmgr.Sleep(ctx, poll) {
			return
		}
	}
}

// serve holds one subscription until ctx is done or the connection drops.
func (s *Service) serve(ctx context.Context, commands chan string, poll time.Duration) {
	err := s.transport.Subscribe(s.cfg.CommandTopic, 1, func(_ string, payload []byte) {
		select {
		case commands <- string(payload):
		default:
			s.logger.Warn("command backlog full, dropped", zap.ByteString("command", payload))
		}
	})
	if err != nil {
		s.logger.Warn("mqtt subscribe failed", zap.Error(err))
		return
	}
	s.logger.Info("serving commands", zap.String("topic", s.cfg.CommandTopic))

	check := time.NewTicker(poll)
	defer check.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.transport.Unsubscribe(s.cfg.CommandTopic); err != nil {
				s.logger.Warn("mqtt unsubscribe failed", zap.Error(err))
			}
			return
		case <-check.C:
			if !s.transport.IsConnected() {
				s.logger.Warn("mqtt connection down, resubscribing after reconnect")
				return
			}
		case cmd := <-commands:
			if err := s.limiter.Wait(ctx); err != nil {
				continue
			}
			s.handle(ctx, cmd)
		}
	}
}

func (s *Service) handle(ctx context.Context, cmd string) {
	reply := s.parser.Parse(ctx, cmd)
	if reply == "" {
		return
	}
	if err := s.transport.Publish(s.cfg.ResponseTopic, 1, false, []byte(reply)); err != nil {
		s.logger.Warn("mqtt reply failed", zap.String("command", cmd), zap.Error(err))
	}
}

// CardMessage is the mirror payload of one card read.
func CardMessage(unitID string, cred types.Credential) string {
	return fmt.Sprintf("%s|%s*%d", unitID, cred.CardID, cred.ReaderID)
}

// PublishCard mirrors one card read to the card topic.
func (s *Service) PublishCard(_ context.Context, cred types.Credential) error {
	if !s.transport.IsConnected() {
		return fmt.Errorf("publish card: not connected")
	}
	return s.transport.Publish(s.cfg.CardTopic, 0, false, []byte(CardMessage(s.unitID, cred)))
}
