// Package chat implements the study-abroad assistant conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/ai"
	"github.com/smartstudy-abroad/smartstudy/internal/utils"
)

var (
	// ErrEmptyMessage is returned for a blank user message.
	ErrEmptyMessage = errors.New("message is required")
	// ErrReplyFailed marks a generator failure or timeout.
	ErrReplyFailed = errors.New("chat reply failed")
)

const (
	defaultTimeout    = 60 * time.Second
	maxMessageRunes   = 4000
	defaultLogPreview = 200
)

// Service answers free-form questions about studying abroad.
type Service struct {
	generator ai.Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// New constructs a Service. A non-positive timeout selects the default.
func New(gen ai.Generator, timeout time.Duration, log *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{generator: gen, timeout: timeout, logger: log}
}

// Reply sends message to the assistant and returns its answer.
func (s *Service) Reply(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if runes := []rune(message); len(runes) > maxMessageRunes {
		message = string(runes[:maxMessageRunes])
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.generator.GenerateContent(ctx, ai.ChatSystemInstruction(), message)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Warn("chat reply failed",
			zap.String("message", utils.TruncateForLog(message, defaultLogPreview)),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %w", ErrReplyFailed, err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrReplyFailed)
	}
	s.logger.Debug("chat reply",
		zap.String("message", utils.TruncateForLog(message, defaultLogPreview)),
		zap.String("reply", utils.TruncateForLog(reply, defaultLogPreview)),
	)
	return reply, nil
}
