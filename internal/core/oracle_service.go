package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"tarot-oracle-backend/internal/models"
)

// replyBound is the hard deadline on a single assistant call.
const replyBound = 30 * time.Second

// Sentinel replies. The chat UI never shows a raw error for a failed
// reading; it renders one of these instead.
const (
	// SentinelUnavailable covers model-side failures worth retrying shortly.
	SentinelUnavailable = "Tuning Into the Energy 🔮"
	// SentinelTimedOut covers calls that hit the deadline or the transport.
	SentinelTimedOut = "The spirits are unclear at the moment. Please try again. 🔮"
)

// oraclePersona is the fixed system prompt governing every reading. It is
// never exposed to the end user.
const oraclePersona = `You are **Tarot Oracle**, a mystical and intuitive tarot card reader.

✨ Personality & Communication
- Speak with calm confidence, poetic language, and emotional warmth.
- Your tone is spiritual, grounded, and curious.
- Every answer should increase the user's desire to continue the conversation.
- Never speak with fear or negativity—only insight, reflection, and guidance.

✨ Greeting Ritual
- Begin every session with a soft, mystical welcome such as:
  - "Welcome, seeker of insight."
  - "Blessings upon your journey 🌙"
  - "Sit with me. Let us open the cards and see what the universe wishes to reveal."

✨ Ask Before Reading
Always ask:
- "What would you like insight on today?"
- Optionally: "Would you prefer a general reading, or something focused—like love, career, or self-growth?"

✨ Tarot Structure
You must use real Tarot:
- **Major Arcana** — destiny, spiritual lessons, major life shifts
- **Minor Arcana:**
  - Cups — emotions, relationships, intuition
  - Wands — passion, purpose, creativity
  - Swords — thoughts, communication, conflict
  - Pentacles — money, stability, career

✨ Card Interpretation Rules
When you draw a card:
1. Describe the symbolism and imagery.
2. Give the upright meaning.
3. If reversed, give the reversed meaning.
4. Apply the meaning directly to the user's situation with emotional depth.

✨ Reading Formats
Offer authentic tarot spreads:
- 1-Card: Message of the moment
- 3-Card: Past — Present — Future
- Celtic Cross: Deep and detailed
- Custom spreads if needed

✨ Predictions & Guidance
- Do NOT use uncertainty words (no "maybe", "possibly", "might").
- Speak with confident spiritual insight.
- Always end with:
  - A mystical affirmation, such as: "Trust the signs. The answers are already within you."
  - A follow-up question like: "Would you like me to see what happens next?"

You are not here to be literal or scientific.
You are tarot, intuition, symbolism, and emotional guidance.

Format your final answer STRICTLY as:
Card – <Name> <emoji>

<meaning/advice>
(No meta, no sources, no searching, no "thinking". If time is needed, write only: "Tuning Into the Energy 🔮")`

// ReplyProvider produces assistant text for an ordered message history. The
// oracle service wraps a provider with the timeout and sentinel policy.
type ReplyProvider interface {
	Generate(ctx context.Context, history []models.Message) (string, error)
}

type oracleService struct {
	provider ReplyProvider
	logger   *zap.Logger
	bound    time.Duration
}

// NewOracleService wraps a ReplyProvider with the bounded-time, never-fails
// contract of the assistant bridge.
func NewOracleService(provider ReplyProvider, logger *zap.Logger) OracleService {
	return &oracleService{provider: provider, logger: logger, bound: replyBound}
}

// Reply resolves to a non-empty string within the bound, whatever the
// provider does. Timeouts and transport failures map to SentinelTimedOut,
// everything else (including empty model output) to SentinelUnavailable.
func (s *oracleService) Reply(ctx context.Context, history []models.Message) string {
	callCtx, cancel := context.WithTimeout(ctx, s.bound)
	defer cancel()

	text, err := s.provider.Generate(callCtx, history)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			s.logger.Warn("Assistant call timed out", zap.Error(err))
			return SentinelTimedOut
		}
		s.logger.Warn("Assistant call failed", zap.Error(err))
		return SentinelUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return SentinelUnavailable
	}
	return text
}

// --- Live (Gemini) provider ---

// GeminiProvider calls the hosted model with the oracle persona as system
// instruction and the capped chat history as conversation context.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

// NewGeminiProvider creates a ReplyProvider backed by the Gemini API.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiProvider{client: client, modelName: modelName}, nil
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *GeminiProvider) Generate(ctx context.Context, history []models.Message) (string, error) {
	model := p.client.GenerativeModel(p.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(oraclePersona)},
	}

	prompt, prior := splitHistory(history)
	if prompt == "" {
		prompt = "Begin the reading."
	}

	session := model.StartChat()
	session.History = prior

	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// splitHistory converts the message history into the final user prompt plus
// the prior turns in the model's wire roles. Empty messages are skipped.
func splitHistory(history []models.Message) (string, []*genai.Content) {
	var filtered []models.Message
	for _, m := range history {
		if strings.TrimSpace(m.Content) != "" {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		return "", nil
	}

	last := filtered[len(filtered)-1]
	prior := filtered[:len(filtered)-1]
	if last.Role != models.RoleUser {
		prior = filtered
		last = models.Message{}
	}

	contents := make([]*genai.Content, 0, len(prior))
	for _, m := range prior {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return last.Content, contents
}

// --- Simulated provider ---

// SimulatedProvider returns a deterministic canned reading derived from the
// most recent user message. Used when no live model credential is configured
// and in tests.
type SimulatedProvider struct{}

// NewSimulatedProvider creates the canned ReplyProvider.
func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{}
}

func (p *SimulatedProvider) Generate(_ context.Context, history []models.Message) (string, error) {
	topic := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser && history[i].Content != "" {
			runes := []rune(history[i].Content)
			if len(runes) > 40 {
				runes = runes[:40]
			}
			topic = string(runes)
			break
		}
	}

	var b strings.Builder
	b.WriteString("Card – The Sun ☀️\n\n")
	b.WriteString("Warm clarity and joyful momentum surround you")
	if topic != "" {
		b.WriteString(" in matters of ")
		b.WriteString(topic)
	}
	b.WriteString(".\n")
	b.WriteString("Lean into optimism, act with confidence, and let your authentic light guide the next step.")
	return b.String(), nil
}
