// Package services orchestrates repositories into the operations the HTTP
// handlers expose.
package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"trenchsocial/domain"
	apperrors "trenchsocial/errors"
	"trenchsocial/projection"
	"trenchsocial/repositories"
)

//go:generate mockgen -source=message_service.go -destination=../mocks/message_service.go -package=mocks

// ConversationView is one row of a user's inbox: the counterpart's public
// profile joined onto the latest message exchanged with them.
type ConversationView struct {
	User        domain.Profile        `json:"user"`
	LastMessage domain.PrivateMessage `json:"lastMessage"`
}

// PrivateMessageView is a stored message with both participant profiles
// resolved for display.
type PrivateMessageView struct {
	ID       uuid.UUID      `json:"id"`
	Sender   domain.Profile `json:"sender"`
	Receiver domain.Profile `json:"receiver"`
	Body     string         `json:"content"`
	SentAt   time.Time      `json:"sentAt"`
}

type IMessageService interface {
	Send(senderID, receiverUsername, body string) (domain.PrivateMessage, error)
	Conversations(viewerID string) ([]ConversationView, error)
	Between(userA, userB string) ([]PrivateMessageView, error)
}

type MessageService struct {
	log      *slog.Logger
	users    repositories.IUserRepository
	messages repositories.IPrivateMessageRepository
	indexer  *projection.ConversationIndexer
}

func NewMessageService(
	log *slog.Logger,
	users repositories.IUserRepository,
	messages repositories.IPrivateMessageRepository,
	indexer *projection.ConversationIndexer,
) *MessageService {
	return &MessageService{log: log, users: users, messages: messages, indexer: indexer}
}

// Send stores a private message. The receiver is addressed by username and
// resolved to an ID at send time; an unknown username is the caller's error,
// not the store's.
func (s *MessageService) Send(senderID, receiverUsername, body string) (domain.PrivateMessage, error) {
	if _, err := s.users.GetByID(senderID); err != nil {
		return domain.PrivateMessage{}, fmt.Errorf("resolving sender %q: %w", senderID, err)
	}
	receiver, err := s.users.GetByUsername(receiverUsername)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return domain.PrivateMessage{}, fmt.Errorf("%w: %q", apperrors.ErrReceiverNotFound, receiverUsername)
		}
		return domain.PrivateMessage{}, fmt.Errorf("resolving receiver %q: %w", receiverUsername, err)
	}

	message := domain.PrivateMessage{
		SenderID:   senderID,
		ReceiverID: receiver.ID,
		Body:       body,
		SentAt:     time.Now().UTC(),
	}
	id, err := s.messages.Append(message)
	if err != nil {
		return domain.PrivateMessage{}, err
	}
	message.ID = id
	s.log.Debug("Private message stored", "sender_id", senderID, "receiver_id", receiver.ID)
	return message, nil
}

// Conversations lists the viewer's inbox, newest conversation first. A
// counterpart whose account no longer resolves is dropped from the view, the
// stored messages stay untouched.
func (s *MessageService) Conversations(viewerID string) ([]ConversationView, error) {
	summaries, err := s.indexer.Summarize(viewerID)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(summaries))
	for _, summary := range summaries {
		counterpart, err := s.users.GetByID(summary.CounterpartID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				s.log.Debug("Conversation counterpart no longer exists", "counterpart_id", summary.CounterpartID)
				continue
			}
			return nil, err
		}
		views = append(views, ConversationView{
			User:        counterpart.Profile(),
			LastMessage: summary.LastMessage,
		})
	}
	return views, nil
}

// Between returns the full exchange between two users, oldest first, with
// participant profiles resolved once for the whole thread.
func (s *MessageService) Between(userA, userB string) ([]PrivateMessageView, error) {
	messages, err := s.messages.Between(userA, userB)
	if err != nil {
		return nil, err
	}

	profiles := map[string]domain.Profile{}
	for _, id := range []string{userA, userB} {
		user, err := s.users.GetByID(id)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				// Keep the thread readable even when one account is gone.
				profiles[id] = domain.Profile{ID: id}
				continue
			}
			return nil, err
		}
		profiles[id] = user.Profile()
	}

	return lo.Map(messages, func(message domain.PrivateMessage, _ int) PrivateMessageView {
		return PrivateMessageView{
			ID:       message.ID,
			Sender:   profiles[message.SenderID],
			Receiver: profiles[message.ReceiverID],
			Body:     message.Body,
			SentAt:   message.SentAt,
		}
	}), nil
}
