package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tarot-oracle-backend/internal/models"
)

// The memory repositories back simulated mode: the same repository contracts
// as the Firestore implementations, served from process memory so the
// application runs without live credentials. They are also the substrate the
// core-service tests run against.

// MemoryProfileRepository is an in-memory ProfileRepository.
type MemoryProfileRepository struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
	now      func() time.Time
}

// NewMemoryProfileRepository creates an empty in-memory profile store.
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		profiles: make(map[string]*models.UserProfile),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (r *MemoryProfileRepository) SetClock(now func() time.Time) { r.now = now }

func (r *MemoryProfileRepository) GetByID(_ context.Context, userID string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile for user '%s' not found: %w", userID, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryProfileRepository) Create(_ context.Context, profile *models.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[profile.ID]; exists {
		return fmt.Errorf("profile for user '%s' already exists", profile.ID)
	}
	cp := *profile
	cp.CreatedAt = r.now()
	cp.UpdatedAt = cp.CreatedAt
	r.profiles[profile.ID] = &cp
	return nil
}

func (r *MemoryProfileRepository) Touch(_ context.Context, userID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		// Merge semantics: a touch materializes a minimal document.
		r.profiles[userID] = &models.UserProfile{ID: userID, Email: email, UpdatedAt: r.now()}
		return nil
	}
	p.Email = email
	p.UpdatedAt = r.now()
	return nil
}

func (r *MemoryProfileRepository) RecordPolicyAcceptance(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		p = &models.UserProfile{ID: userID}
		r.profiles[userID] = p
	}
	p.PrivacyPolicyAccepted = true
	p.PrivacyPolicyAcceptedAt = r.now()
	p.UpdatedAt = r.now()
	return nil
}

// MemorySubscriptionRepository is an in-memory SubscriptionRepository.
type MemorySubscriptionRepository struct {
	mu      sync.Mutex
	records map[string]*models.SubscriptionRecord
	now     func() time.Time
}

// NewMemorySubscriptionRepository creates an empty in-memory subscription
// store.
func NewMemorySubscriptionRepository() *MemorySubscriptionRepository {
	return &MemorySubscriptionRepository{
		records: make(map[string]*models.SubscriptionRecord),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (r *MemorySubscriptionRepository) SetClock(now func() time.Time) { r.now = now }

func (r *MemorySubscriptionRepository) GetByID(_ context.Context, userID string) (*models.SubscriptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return nil, fmt.Errorf("subscription for user '%s' not found: %w", userID, ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (r *MemorySubscriptionRepository) Put(_ context.Context, userID string, record *models.SubscriptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[userID]
	if !ok {
		cur = &models.SubscriptionRecord{ID: userID}
		r.records[userID] = cur
	}
	cur.Active = record.Active
	if record.ExpiresAt != 0 {
		cur.ExpiresAt = record.ExpiresAt
	}
	if record.Status != "" {
		cur.Status = record.Status
	}
	if record.StripeCustomerID != "" {
		cur.StripeCustomerID = record.StripeCustomerID
	}
	if record.StripeSubscriptionID != "" {
		cur.StripeSubscriptionID = record.StripeSubscriptionID
	}
	cur.UpdatedAt = r.now()
	return nil
}

// MemoryChatRepository is an in-memory ChatRepository.
type MemoryChatRepository struct {
	mu    sync.Mutex
	chats map[string]map[string]*models.Chat // userID -> chatID -> chat
	now   func() time.Time
}

// NewMemoryChatRepository creates an empty in-memory chat store.
func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		chats: make(map[string]map[string]*models.Chat),
		now:   time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (r *MemoryChatRepository) SetClock(now func() time.Time) { r.now = now }

func (r *MemoryChatRepository) userChats(userID string) map[string]*models.Chat {
	m, ok := r.chats[userID]
	if !ok {
		m = make(map[string]*models.Chat)
		r.chats[userID] = m
	}
	return m
}

func (r *MemoryChatRepository) Create(_ context.Context, userID string, chat *models.Chat) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	cp := *chat
	cp.ID = id
	cp.Messages = append([]models.Message(nil), chat.Messages...)
	cp.CreatedAt = r.now()
	cp.UpdatedAt = cp.CreatedAt
	r.userChats(userID)[id] = &cp
	chat.ID = id
	return id, nil
}

func (r *MemoryChatRepository) GetByID(_ context.Context, userID, chatID string) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.userChats(userID)[chatID]
	if !ok {
		return nil, fmt.Errorf("chat '%s' for user '%s' not found: %w", chatID, userID, ErrNotFound)
	}
	cp := *chat
	cp.Messages = append([]models.Message(nil), chat.Messages...)
	return &cp, nil
}

func (r *MemoryChatRepository) SetMessages(_ context.Context, userID, chatID string, messages []models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.userChats(userID)[chatID]
	if !ok {
		// Merge semantics: materialize a chat whose creation never confirmed.
		chat = &models.Chat{ID: chatID, Title: models.DefaultChatTitle, CreatedAt: r.now()}
		r.userChats(userID)[chatID] = chat
	}
	chat.Messages = append([]models.Message(nil), messages...)
	chat.UpdatedAt = r.now()
	return nil
}

func (r *MemoryChatRepository) SetTitle(_ context.Context, userID, chatID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.userChats(userID)[chatID]
	if !ok {
		// Merge semantics, same as SetMessages: materialize a chat whose
		// creation never confirmed.
		chat = &models.Chat{ID: chatID, CreatedAt: r.now()}
		r.userChats(userID)[chatID] = chat
	}
	chat.Title = title
	chat.UpdatedAt = r.now()
	return nil
}

func (r *MemoryChatRepository) ListByUser(_ context.Context, userID string) ([]*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Chat
	for _, chat := range r.userChats(userID) {
		cp := *chat
		cp.Messages = append([]models.Message(nil), chat.Messages...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryChatRepository) Delete(_ context.Context, userID, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.userChats(userID)[chatID]; !ok {
		return fmt.Errorf("chat '%s' for user '%s' not found for deletion: %w", chatID, userID, ErrNotFound)
	}
	delete(r.userChats(userID), chatID)
	return nil
}
