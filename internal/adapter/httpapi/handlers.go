package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chatstore/internal/domain"
	"chatstore/internal/shared"
)

type handlers struct {
	deps Deps
}

// userResponse is the wire shape of a user. The password hash never
// leaves the service.
type userResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	resp := userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type messageResponse struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toMessageResponse(m *domain.ChatMessage) messageResponse {
	resp := messageResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Role:      m.Role,
		Text:      m.Text,
	}
	if !m.CreatedAt.IsZero() {
		resp.CreatedAt = m.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *handlers) health(c *gin.Context) {
	if h.deps.Health != nil {
		if err := h.deps.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.MarkKind(fmt.Errorf("invalid id %q", c.Param("id")), shared.KindValidation)
	}
	return id, nil
}

type createUserRequest struct {
	Username     string `json:"username" binding:"required"`
	PasswordHash string `json:"password_hash"`
	Email        string `json:"email" binding:"required"`
}

func (h *handlers) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}

	u, err := domain.NewUser(req.Username, req.PasswordHash, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.deps.Users.Add(c.Request.Context(), u); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(u))
}

func (h *handlers) listUsers(c *gin.Context) {
	// ?username= narrows the listing to one account
	if username := c.Query("username"); username != "" {
		u, err := h.deps.Users.ByUsername(c.Request.Context(), username)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, []userResponse{toUserResponse(u)})
		return
	}

	users, err := h.deps.Users.All(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	u, err := h.deps.Users.ByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

type updateUserRequest struct {
	Username     string `json:"username" binding:"required"`
	PasswordHash string `json:"password_hash"`
	Email        string `json:"email" binding:"required"`
}

func (h *handlers) updateUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}

	u, err := domain.NewUser(req.Username, req.PasswordHash, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	u.ID = id

	if err := h.deps.Users.Update(c.Request.Context(), u); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

func (h *handlers) deleteUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.deps.Users.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) userSessions(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	sessions, err := h.deps.Chat.SessionsByUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []string{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *handlers) userMessages(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	messages, err := h.deps.Chat.AllByUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

type createMessageRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	UserID    int64  `json:"user_id" binding:"required"`
	Role      string `json:"role" binding:"required"`
	Text      string `json:"text" binding:"required"`
}

func (h *handlers) createMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}

	m, err := domain.NewChatMessage(req.SessionID, req.UserID, req.Role, req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.deps.Chat.Add(c.Request.Context(), m); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, toMessageResponse(m))
}

func (h *handlers) listMessages(c *gin.Context) {
	messages, err := h.deps.Chat.All(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getMessage(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	m, err := h.deps.Chat.ByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponse(m))
}

func (h *handlers) updateMessage(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}

	m, err := domain.NewChatMessage(req.SessionID, req.UserID, req.Role, req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	m.ID = id

	if err := h.deps.Chat.Update(c.Request.Context(), m); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponse(m))
}

func (h *handlers) deleteMessage(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.deps.Chat.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listSessions(c *gin.Context) {
	sessions, err := h.deps.Chat.Sessions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []string{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *handlers) sessionHistory(c *gin.Context) {
	history, err := h.deps.Chat.BySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]messageResponse, 0, history.Len())
	for _, m := range history.Messages {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"session_id": history.SessionID, "messages": out})
}

func (h *handlers) deleteSession(c *gin.Context) {
	if err := h.deps.Chat.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type registerRequest struct {
	Username     string `json:"username" binding:"required"`
	PasswordHash string `json:"password_hash"`
	Email        string `json:"email" binding:"required"`
	SessionID    string `json:"session_id" binding:"required"`
	Role         string `json:"role"`
	Text         string `json:"text" binding:"required"`
}

// register creates a user together with their first message in one
// storage transaction.
func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}

	u, err := domain.NewUser(req.Username, req.PasswordHash, req.Email)
	if err != nil {
		fail(c, err)
		return
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	m, err := domain.NewUnassignedMessage(req.SessionID, role, req.Text)
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.deps.Registrar.RegisterUserWithInitialMessage(c.Request.Context(), u, m); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":    toUserResponse(u),
		"message": toMessageResponse(m),
	})
}
