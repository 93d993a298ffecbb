package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tarot-oracle-backend/internal/db"
	"tarot-oracle-backend/internal/models"
)

const (
	// writeBound is how long best-effort chat writes may take before the
	// caller proceeds with its local state.
	writeBound = 3 * time.Second
	// readBound caps chat reads.
	readBound = 5 * time.Second
	// titleMaxLen bounds derived chat titles.
	titleMaxLen = 40
	// fallbackTitle is used when assistant output yields no usable title.
	fallbackTitle = "Tarot Reading"
)

// conversationService implements ConversationService. Message appends and
// title updates are frequent and low-stakes; the next successful append
// rewrites the full capped sequence, so a dropped write self-heals. Deletion
// is rare and irreversible in intent, so its failures propagate.
type conversationService struct {
	chats  db.ChatRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewConversationService creates a ConversationService over the given
// repository.
func NewConversationService(chats db.ChatRepository, logger *zap.Logger) ConversationService {
	return &conversationService{chats: chats, logger: logger, now: time.Now}
}

// EnsureChat returns the supplied id unchanged, or creates a new chat. The
// creation write gets writeBound to confirm; past that a locally generated
// id is returned and the first message write materializes the document
// through merge semantics.
func (s *conversationService) EnsureChat(ctx context.Context, userID, chatID string) string {
	if chatID != "" {
		return chatID
	}

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)

	createCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeBound)
	go func() {
		defer cancel()
		chat := &models.Chat{Title: models.DefaultChatTitle, Messages: []models.Message{}}
		id, err := s.chats.Create(createCtx, userID, chat)
		done <- result{id: id, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.id
		}
		s.logger.Warn("Chat creation failed, returning fallback id",
			zap.String("userID", userID), zap.Error(res.err))
	case <-time.After(writeBound):
		s.logger.Warn("Chat creation did not confirm in time, returning fallback id",
			zap.String("userID", userID))
	}
	return fmt.Sprintf("chat-%d", s.now().UnixMilli())
}

// AppendMessage applies the sliding-window cap and persists best-effort. The
// returned sequence is the caller's source of truth for rendering; callers
// serialize their own appends per chat.
func (s *conversationService) AppendMessage(ctx context.Context, userID, chatID string, current []models.Message, next models.Message) []models.Message {
	msgs := models.CapMessages(append(append([]models.Message(nil), current...), next))

	writeCtx, cancel := context.WithTimeout(ctx, writeBound)
	defer cancel()
	if err := s.chats.SetMessages(writeCtx, userID, chatID, msgs); err != nil {
		s.logger.Warn("Best-effort message write failed",
			zap.String("userID", userID), zap.String("chatID", chatID), zap.Error(err))
	}
	return msgs
}

// SetTitleFromAssistant derives a short title from the first line of the
// assistant's reply and persists it best-effort.
func (s *conversationService) SetTitleFromAssistant(ctx context.Context, userID, chatID, assistantText string) {
	title := deriveTitle(assistantText)

	writeCtx, cancel := context.WithTimeout(ctx, writeBound)
	defer cancel()
	if err := s.chats.SetTitle(writeCtx, userID, chatID, title); err != nil {
		s.logger.Warn("Best-effort title write failed",
			zap.String("userID", userID), zap.String("chatID", chatID), zap.Error(err))
	}
}

func deriveTitle(assistantText string) string {
	firstLine, _, _ := strings.Cut(assistantText, "\n")
	firstLine = strings.TrimSpace(firstLine)
	if firstLine == "" {
		return fallbackTitle
	}
	runes := []rune(firstLine)
	if len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen])
	}
	return firstLine
}

// LoadChat returns the persisted chat, or nil when none exists.
func (s *conversationService) LoadChat(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	readCtx, cancel := context.WithTimeout(ctx, readBound)
	defer cancel()
	chat, err := s.chats.GetByID(readCtx, userID, chatID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load chat '%s' for user '%s': %w", chatID, userID, err)
	}
	return chat, nil
}

// ListChats returns the user's chats most recent first, degrading to an
// empty list when the listing cannot be served in time.
func (s *conversationService) ListChats(ctx context.Context, userID string) []*models.Chat {
	readCtx, cancel := context.WithTimeout(ctx, readBound)
	defer cancel()
	chats, err := s.chats.ListByUser(readCtx, userID)
	if err != nil {
		s.logger.Warn("Chat listing failed, returning empty list",
			zap.String("userID", userID), zap.Error(err))
		return []*models.Chat{}
	}
	return chats
}

// DeleteChat removes a chat permanently. Unlike appends, a failure here is
// surfaced so the UI can report it.
func (s *conversationService) DeleteChat(ctx context.Context, userID, chatID string) error {
	writeCtx, cancel := context.WithTimeout(ctx, readBound)
	defer cancel()
	if err := s.chats.Delete(writeCtx, userID, chatID); err != nil {
		return fmt.Errorf("failed to delete chat '%s': %w", chatID, err)
	}
	return nil
}
