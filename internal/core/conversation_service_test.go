package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/db"
	"tarot-oracle-backend/internal/models"
)

// failingChatRepo fails every operation with the configured error.
type failingChatRepo struct {
	err error
}

func (r *failingChatRepo) Create(context.Context, string, *models.Chat) (string, error) {
	return "", r.err
}
func (r *failingChatRepo) GetByID(context.Context, string, string) (*models.Chat, error) {
	return nil, r.err
}
func (r *failingChatRepo) SetMessages(context.Context, string, string, []models.Message) error {
	return r.err
}
func (r *failingChatRepo) SetTitle(context.Context, string, string, string) error { return r.err }
func (r *failingChatRepo) ListByUser(context.Context, string) ([]*models.Chat, error) {
	return nil, r.err
}
func (r *failingChatRepo) Delete(context.Context, string, string) error { return r.err }

func newConversationUnderTest(chats db.ChatRepository) *conversationService {
	return NewConversationService(chats, zap.NewNop()).(*conversationService)
}

func makeMessages(n int) []models.Message {
	msgs := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.Message{Role: role, Content: fmt.Sprintf("m%d", i), Ts: int64(i)})
	}
	return msgs
}

func TestEnsureChatReturnsSuppliedID(t *testing.T) {
	svc := newConversationUnderTest(&failingChatRepo{err: errors.New("must not be called")})
	assert.Equal(t, "existing-id", svc.EnsureChat(context.Background(), "u1", "existing-id"))
}

func TestEnsureChatCreatesNewChat(t *testing.T) {
	repo := db.NewMemoryChatRepository()
	svc := newConversationUnderTest(repo)

	id := svc.EnsureChat(context.Background(), "u1", "")
	require.NotEmpty(t, id)

	chat, err := repo.GetByID(context.Background(), "u1", id)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultChatTitle, chat.Title)
	assert.Empty(t, chat.Messages)
}

func TestEnsureChatFallsBackWhenCreateFails(t *testing.T) {
	svc := newConversationUnderTest(&failingChatRepo{err: errors.New("write rejected")})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	id := svc.EnsureChat(context.Background(), "u1", "")
	assert.Equal(t, "chat-1700000000000", id)
}

func TestAppendMessageCapsSequence(t *testing.T) {
	repo := db.NewMemoryChatRepository()
	svc := newConversationUnderTest(repo)
	chatID := svc.EnsureChat(context.Background(), "u1", "")

	current := makeMessages(models.MessageCap)
	next := models.Message{Role: models.RoleUser, Content: "newest", Ts: 999}
	msgs := svc.AppendMessage(context.Background(), "u1", chatID, current, next)

	require.Len(t, msgs, models.MessageCap)
	assert.Equal(t, "newest", msgs[len(msgs)-1].Content)
	// Oldest message dropped, order preserved.
	assert.Equal(t, "m1", msgs[0].Content)

	persisted, err := repo.GetByID(context.Background(), "u1", chatID)
	require.NoError(t, err)
	assert.Equal(t, msgs, persisted.Messages)
}

func TestAppendMessageDoesNotMutateInput(t *testing.T) {
	svc := newConversationUnderTest(db.NewMemoryChatRepository())
	current := makeMessages(3)
	snapshot := append([]models.Message(nil), current...)

	svc.AppendMessage(context.Background(), "u1", "c1", current, models.Message{Role: models.RoleUser, Content: "x"})
	assert.Equal(t, snapshot, current)
}

func TestAppendMessageSurvivesPersistFailure(t *testing.T) {
	svc := newConversationUnderTest(&failingChatRepo{err: errors.New("backend down")})

	msgs := svc.AppendMessage(context.Background(), "u1", "c1", nil,
		models.Message{Role: models.RoleUser, Content: "hello"})
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestAppendMessageMaterializesFallbackChat(t *testing.T) {
	repo := db.NewMemoryChatRepository()
	svc := newConversationUnderTest(repo)

	// Chat id never confirmed by a create; the first append materializes it.
	svc.AppendMessage(context.Background(), "u1", "chat-12345", nil,
		models.Message{Role: models.RoleUser, Content: "hello"})

	chat, err := repo.GetByID(context.Background(), "u1", "chat-12345")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultChatTitle, chat.Title)
	require.Len(t, chat.Messages, 1)
}

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"first line only", "Card – The Sun ☀️\n\nWarm clarity surrounds you.", "Card – The Sun ☀️"},
		{"truncates to forty runes", strings.Repeat("a", 60), strings.Repeat("a", 40)},
		{"empty falls back", "", "Tarot Reading"},
		{"whitespace falls back", "   \nrest", "Tarot Reading"},
		{"trims surrounding space", "  The Moon 🌙  ", "The Moon 🌙"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deriveTitle(tc.in))
		})
	}
}

func TestSetTitleFromAssistantPersists(t *testing.T) {
	repo := db.NewMemoryChatRepository()
	svc := newConversationUnderTest(repo)
	chatID := svc.EnsureChat(context.Background(), "u1", "")

	svc.SetTitleFromAssistant(context.Background(), "u1", chatID, "Card – The Tower 🌩\n\nUpheaval.")

	chat, err := repo.GetByID(context.Background(), "u1", chatID)
	require.NoError(t, err)
	assert.Equal(t, "Card – The Tower 🌩", chat.Title)
}

func TestLoadChatMissingReturnsNil(t *testing.T) {
	svc := newConversationUnderTest(db.NewMemoryChatRepository())
	chat, err := svc.LoadChat(context.Background(), "u1", "nope")
	require.NoError(t, err)
	assert.Nil(t, chat)
}

func TestListChatsDegradesToEmpty(t *testing.T) {
	svc := newConversationUnderTest(&failingChatRepo{err: errors.New("listing failed")})
	chats := svc.ListChats(context.Background(), "u1")
	require.NotNil(t, chats)
	assert.Empty(t, chats)
}

func TestListChatsMostRecentFirst(t *testing.T) {
	repo := db.NewMemoryChatRepository()
	base := time.Now()
	tick := 0
	repo.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	svc := newConversationUnderTest(repo)

	first := svc.EnsureChat(context.Background(), "u1", "")
	second := svc.EnsureChat(context.Background(), "u1", "")

	chats := svc.ListChats(context.Background(), "u1")
	require.Len(t, chats, 2)
	assert.Equal(t, second, chats[0].ID)
	assert.Equal(t, first, chats[1].ID)
}

func TestDeleteChatPropagatesFailure(t *testing.T) {
	svc := newConversationUnderTest(&failingChatRepo{err: errors.New("delete rejected")})
	err := svc.DeleteChat(context.Background(), "u1", "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c1")
}

func TestDeleteChatRemovesThread(t *testing.T) {
	repo := db.NewMemoryChatRepository()
	svc := newConversationUnderTest(repo)
	chatID := svc.EnsureChat(context.Background(), "u1", "")

	require.NoError(t, svc.DeleteChat(context.Background(), "u1", chatID))
	chat, err := svc.LoadChat(context.Background(), "u1", chatID)
	require.NoError(t, err)
	assert.Nil(t, chat)
}
