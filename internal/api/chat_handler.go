package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/core"
	"tarot-oracle-backend/internal/middleware"
	"tarot-oracle-backend/internal/models"
)

// ChatHandler owns the conversation endpoints, including the entitlement-gated
// message send.
type ChatHandler struct {
	conversations core.ConversationService
	entitlement   core.EntitlementService
	oracle        core.OracleService
	logger        *zap.Logger
	now           func() time.Time
}

func NewChatHandler(conversations core.ConversationService, entitlement core.EntitlementService, oracle core.OracleService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		entitlement:   entitlement,
		oracle:        oracle,
		logger:        logger,
		now:           time.Now,
	}
}

// Ensure handles POST /chats: returns the supplied chat id unchanged, or a
// fresh id when none was given. Always succeeds.
func (h *ChatHandler) Ensure(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req EnsureChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	chatID := h.conversations.EnsureChat(c.Request.Context(), uid, req.ChatID)
	c.JSON(http.StatusOK, EnsureChatResponse{ChatID: chatID})
}

// List handles GET /chats, most recent first.
func (h *ChatHandler) List(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	chats := h.conversations.ListChats(c.Request.Context(), uid)
	c.JSON(http.StatusOK, ListChatsResponse{Chats: chats})
}

// Get handles GET /chats/:chatId.
func (h *ChatHandler) Get(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	chatID := c.Param("chatId")

	chat, err := h.conversations.LoadChat(c.Request.Context(), uid, chatID)
	if err != nil {
		h.logger.Error("Failed to load chat", zap.String("userID", uid), zap.String("chatID", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load chat", Details: err.Error()})
		return
	}
	if chat == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Chat not found"})
		return
	}

	c.JSON(http.StatusOK, chat)
}

// Delete handles DELETE /chats/:chatId. Unlike appends, deletion failures
// propagate so the client never shows a thread as gone while it persists.
func (h *ChatHandler) Delete(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	chatID := c.Param("chatId")

	if err := h.conversations.DeleteChat(c.Request.Context(), uid, chatID); err != nil {
		h.logger.Error("Failed to delete chat", zap.String("userID", uid), zap.String("chatID", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete chat", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Chat deleted"})
}

// SendMessage handles POST /chats/:chatId/messages. The entitlement check
// runs first; a denied user gets 402 without touching the thread. The reply
// always succeeds from the client's perspective, sentinel text included.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}
	chatID := c.Param("chatId")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: content is required", Details: err.Error()})
		return
	}

	if !h.entitlement.CanSendMessage(c.Request.Context(), uid) {
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: "Subscription or active trial required"})
		return
	}

	var current []models.Message
	firstReply := true
	if chat, err := h.conversations.LoadChat(c.Request.Context(), uid, chatID); err != nil {
		h.logger.Warn("Proceeding with empty history after load failure",
			zap.String("userID", uid), zap.String("chatID", chatID), zap.Error(err))
	} else if chat != nil {
		current = chat.Messages
		for _, m := range chat.Messages {
			if m.Role == models.RoleAssistant {
				firstReply = false
				break
			}
		}
	}

	userMsg := models.Message{Role: models.RoleUser, Content: req.Content, Ts: h.now().UnixMilli()}
	msgs := h.conversations.AppendMessage(c.Request.Context(), uid, chatID, current, userMsg)

	reply := h.oracle.Reply(c.Request.Context(), msgs)

	assistantMsg := models.Message{Role: models.RoleAssistant, Content: reply, Ts: h.now().UnixMilli()}
	msgs = h.conversations.AppendMessage(c.Request.Context(), uid, chatID, msgs, assistantMsg)

	if firstReply {
		h.conversations.SetTitleFromAssistant(c.Request.Context(), uid, chatID, reply)
	}

	c.JSON(http.StatusOK, SendMessageResponse{Reply: reply, Messages: msgs})
}
