// Package messaging stores direct messages between matched users.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"anomidate/internal/db"
	"anomidate/internal/models"
	"anomidate/internal/sanitize"
)

const MaxMessageLength = 2000

var (
	ErrNotMatched       = errors.New("you can only message your matches")
	ErrMessageTooLong   = fmt.Errorf("message must be at most %d characters", MaxMessageLength)
	ErrSelfConversation = errors.New("cannot message yourself")
)

// MatchChecker reports whether two users like each other.
type MatchChecker interface {
	IsMutual(ctx context.Context, a, b int64) (bool, error)
}

// Notifier receives every stored message.
type Notifier interface {
	MessageCreated(m *models.Message)
}

type Service struct {
	messages *db.MessageRepository
	matches  MatchChecker
	notifier Notifier
}

func NewService(messages *db.MessageRepository, matches MatchChecker, notifier Notifier) *Service {
	return &Service{
		messages: messages,
		matches:  matches,
		notifier: notifier,
	}
}

// SendMessage stores a message from sender to receiver. Blank content is
// ignored and returns nil without error.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID int64, content string) (*models.Message, error) {
	if senderID == receiverID {
		return nil, ErrSelfConversation
	}

	content = sanitize.Text(content)
	if content == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	mutual, err := s.matches.IsMutual(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("checking match: %w", err)
	}
	if !mutual {
		return nil, ErrNotMatched
	}

	msg, err := s.messages.Create(ctx, senderID, receiverID, content)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.MessageCreated(msg)
	}
	return msg, nil
}

// GetConversation returns all messages between a and b in both directions,
// oldest first. Access control is the caller's concern.
func (s *Service) GetConversation(ctx context.Context, a, b int64) ([]*models.Message, error) {
	return s.messages.Conversation(ctx, a, b)
}

// MarkRead flags the messages counterpart sent to reader as read.
func (s *Service) MarkRead(ctx context.Context, readerID, counterpartID int64) error {
	_, err := s.messages.MarkRead(ctx, readerID, counterpartID)
	return err
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.messages.UnreadCount(ctx, userID)
}
