package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tarot-oracle-backend/internal/models"
)

const chatsSubcollection = "chats"

// firestoreChatRepository implements ChatRepository using Firestore. Chats
// live in a per-user subcollection: users/{uid}/chats/{chatId}.
type firestoreChatRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreChatRepository creates a Firestore-backed ChatRepository.
func NewFirestoreChatRepository(client *firestore.Client, logger *zap.Logger) ChatRepository {
	return &firestoreChatRepository{client: client, logger: logger}
}

func (r *firestoreChatRepository) chats(userID string) *firestore.CollectionRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(chatsSubcollection)
}

// Create stores a new chat document with an auto-generated ID and returns it.
func (r *firestoreChatRepository) Create(ctx context.Context, userID string, chat *models.Chat) (string, error) {
	if userID == "" {
		return "", errors.New("userID cannot be empty for Create operation")
	}
	docRef := r.chats(userID).NewDoc()
	chat.ID = docRef.ID

	_, err := docRef.Set(ctx, map[string]interface{}{
		"title":     chat.Title,
		"messages":  chat.Messages,
		"createdAt": firestore.ServerTimestamp,
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return "", fmt.Errorf("failed to create chat for user '%s': %w", userID, err)
	}
	return docRef.ID, nil
}

// GetByID retrieves a chat, or ErrNotFound if no such document exists.
func (r *firestoreChatRepository) GetByID(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	if userID == "" || chatID == "" {
		return nil, errors.New("userID and chatID cannot be empty for GetByID operation")
	}
	snap, err := r.chats(userID).Doc(chatID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("chat '%s' for user '%s' not found: %w", chatID, userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chat '%s' for user '%s': %w", chatID, userID, err)
	}

	var chat models.Chat
	if err := snap.DataTo(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat '%s' for user '%s': %w", chatID, userID, err)
	}
	chat.ID = snap.Ref.ID
	return &chat, nil
}

// SetMessages overwrites the message sequence and refreshes updatedAt. Merge
// semantics materialize chats whose creation write never confirmed.
func (r *firestoreChatRepository) SetMessages(ctx context.Context, userID, chatID string, messages []models.Message) error {
	if userID == "" || chatID == "" {
		return errors.New("userID and chatID cannot be empty for SetMessages operation")
	}
	_, err := r.chats(userID).Doc(chatID).Set(ctx, map[string]interface{}{
		"messages":  messages,
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set messages on chat '%s' for user '%s': %w", chatID, userID, err)
	}
	return nil
}

// SetTitle updates only the chat title.
func (r *firestoreChatRepository) SetTitle(ctx context.Context, userID, chatID, title string) error {
	if userID == "" || chatID == "" {
		return errors.New("userID and chatID cannot be empty for SetTitle operation")
	}
	_, err := r.chats(userID).Doc(chatID).Set(ctx, map[string]interface{}{
		"title": title,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set title on chat '%s' for user '%s': %w", chatID, userID, err)
	}
	return nil
}

// ListByUser returns the user's chats ordered by creation time, descending.
func (r *firestoreChatRepository) ListByUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListByUser operation")
	}

	iter := r.chats(userID).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var chats []*models.Chat
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate chats for user '%s': %w", userID, err)
		}

		var chat models.Chat
		if err := doc.DataTo(&chat); err != nil {
			r.logger.Warn("Skipping undecodable chat document",
				zap.String("userID", userID),
				zap.String("chatID", doc.Ref.ID),
				zap.Error(err))
			continue
		}
		chat.ID = doc.Ref.ID
		chats = append(chats, &chat)
	}
	return chats, nil
}

// Delete removes a chat permanently. Unlike message writes this must
// complete; failures propagate to the caller.
func (r *firestoreChatRepository) Delete(ctx context.Context, userID, chatID string) error {
	if userID == "" || chatID == "" {
		return errors.New("userID and chatID cannot be empty for Delete operation")
	}
	_, err := r.chats(userID).Doc(chatID).Delete(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("chat '%s' for user '%s' not found for deletion: %w", chatID, userID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete chat '%s' for user '%s': %w", chatID, userID, err)
	}
	return nil
}
