package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vkuznetsov-dev/cipherchat/internal/codecx"
	"github.com/vkuznetsov-dev/cipherchat/internal/common"
	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/services"
)

// Handlers binds the application services to HTTP routes.
type Handlers struct {
	conversations *services.ConversationService
	messages      *services.MessageService
	transfers     *services.TransferService
	secretKey     []byte
	logger        logging.Logger
}

func NewHandlers(
	conversations *services.ConversationService,
	messages *services.MessageService,
	transfers *services.TransferService,
	secretKey []byte,
	logger logging.Logger,
) *Handlers {
	return &Handlers{
		conversations: conversations,
		messages:      messages,
		transfers:     transfers,
		secretKey:     secretKey,
		logger:        logger.With("module", "http_handlers"),
	}
}

// Register mounts all routes. Conversation creation and message
// insertion stay outside the auth group: identity for them comes from
// the bearer token when present or from the request body, so
// service-to-service callers can post without a user token.
func (h *Handlers) Register(r *gin.Engine) {
	chat := r.Group("/chat")

	chat.POST("/create", h.createChat)
	chat.POST("/massage", h.saveMessage)

	authed := chat.Group("", Auth(h.secretKey))
	authed.GET("/:chatId/messages", h.listMessages)
	authed.PATCH("/:chatId/messages/:msgId", h.updateMessage)
	authed.DELETE("/:chatId/messages/:msgId", h.deleteMessage)
	authed.GET("/:chatId/messages/:msgId/files", h.listMessageFiles)
	authed.POST("/upload_chunk/:chatId/:msgId/:fileId/:index", h.uploadChunk)
	authed.POST("/upload_metadata/:chatId/:msgId/:fileId", h.uploadMetadata)
	authed.GET("/file_metadata/:chatId/:msgId/:fileId", h.fileMetadata)
	authed.GET("/file_chunk/:chatId/:msgId/:fileId/:index", h.fileChunk)
	authed.GET("/file/*path", h.fileContent)
}

type createChatRequest struct {
	CompanionID int64 `json:"companion_id"`
	// UserID identifies the caller when no bearer token is supplied.
	UserID int64 `json:"user_id,omitempty"`
}

func (h *Handlers) createChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	callerID, ok := bearerIdentity(c, h.secretKey)
	if !ok {
		callerID = req.UserID
	}
	if callerID <= 0 || req.CompanionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "caller and companion identifiers are required"})
		return
	}

	conv, err := h.conversations.EnsureConversation(c.Request.Context(), callerID, req.CompanionID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id":    conv.ID,
		"user1_id":   conv.User1ID,
		"user2_id":   conv.User2ID,
		"created_at": conv.CreatedAt.Format(time.RFC3339),
	})
}

type messageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	SenderID    int64                 `json:"sender_id"`
	Ciphertext  string                `json:"ciphertext"`
	Nonce       string                `json:"nonce"`
	Envelopes   map[string]any        `json:"envelopes"`
	MessageType string                `json:"message_type"`
	Metadata    []models.IncomingFile `json:"metadata"`
	CreatedAt   string                `json:"created_at"`
	IsRead      bool                  `json:"is_read"`
}

func (h *Handlers) saveMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if req.ChatID <= 0 || req.SenderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "chat_id and sender_id are required"})
		return
	}

	id, err := h.messages.Append(c.Request.Context(), &services.AppendMessage{
		ConversationID: req.ChatID,
		SenderID:       req.SenderID,
		Ciphertext:     req.Ciphertext,
		Nonce:          req.Nonce,
		Envelopes:      req.Envelopes,
		Kind:           req.MessageType,
		Files:          req.Metadata,
		CreatedAt:      req.CreatedAt,
		IsRead:         req.IsRead,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message saved successfully", "message_id": id})
}

type messageResponse struct {
	ID          int64             `json:"id"`
	ChatID      int64             `json:"chat_id"`
	SenderID    int64             `json:"sender_id"`
	Ciphertext  string            `json:"ciphertext"`
	Nonce       string            `json:"nonce"`
	Envelopes   json.RawMessage   `json:"envelopes"`
	MessageType string            `json:"message_type"`
	Metadata    []models.FileMeta `json:"metadata"`
	CreatedAt   string            `json:"created_at"`
	EditedAt    *string           `json:"edited_at"`
	IsRead      bool              `json:"is_read"`
}

func toMessageResponse(m *models.Message) messageResponse {
	envelopes := json.RawMessage(m.Envelopes)
	if len(envelopes) == 0 {
		envelopes = json.RawMessage("{}")
	}
	var editedAt *string
	if m.EditedAt != nil {
		s := m.EditedAt.Format(time.RFC3339)
		editedAt = &s
	}
	return messageResponse{
		ID:          m.ID,
		ChatID:      m.ConversationID,
		SenderID:    m.SenderID,
		Ciphertext:  codecx.EncodeBytes(m.Ciphertext),
		Nonce:       codecx.EncodeBytes(m.Nonce),
		Envelopes:   envelopes,
		MessageType: string(m.Kind),
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
		EditedAt:    editedAt,
		IsRead:      m.IsRead,
	}
}

func (h *Handlers) listMessages(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	if c.Query("latest") == "1" {
		out := []messageResponse{}
		msg, err := h.messages.Latest(ctx, chatID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			// an empty conversation has no latest message
		case err != nil:
			h.writeError(c, err)
			return
		default:
			out = append(out, toMessageResponse(msg))
		}
		c.JSON(http.StatusOK, out)
		return
	}

	msgs, err := h.messages.List(ctx, chatID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

type updateMessageRequest struct {
	Ciphertext  *string            `json:"ciphertext"`
	Nonce       *string            `json:"nonce"`
	Envelopes   map[string]any     `json:"envelopes"`
	MessageType *string            `json:"message_type"`
	Metadata    *[]models.FileMeta `json:"metadata"`
	IsRead      *bool              `json:"is_read"`
}

func (h *Handlers) updateMessage(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	msgID, ok := pathID(c, "msgId")
	if !ok {
		return
	}
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid or missing token"})
		return
	}

	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.conversations.RequireMember(ctx, chatID, userID); err != nil {
		h.writeError(c, err)
		return
	}

	update := &models.MessageUpdate{
		Ciphertext: req.Ciphertext,
		Nonce:      req.Nonce,
		Envelopes:  req.Envelopes,
		Kind:       req.MessageType,
		Metadata:   req.Metadata,
		IsRead:     req.IsRead,
	}
	if err := h.messages.Update(ctx, chatID, msgID, userID, update); err != nil {
		h.writeError(c, err)
		return
	}

	if update.Empty() {
		c.JSON(http.StatusOK, gin.H{"status": "noop"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) deleteMessage(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	msgID, ok := pathID(c, "msgId")
	if !ok {
		return
	}
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid or missing token"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.conversations.RequireMember(ctx, chatID, userID); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.messages.Delete(ctx, chatID, msgID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type fileInfoResponse struct {
	ID        int64             `json:"id"`
	MessageID int64             `json:"message_id"`
	FileID    int64             `json:"file_id"`
	FilePath  string            `json:"file_path"`
	Filename  string            `json:"filename"`
	Mimetype  string            `json:"mimetype"`
	Size      int64             `json:"size"`
	Nonce     string            `json:"nonce"`
	CreatedAt string            `json:"created_at"`
	Metadata  []models.FileMeta `json:"metadata"`
}

func (h *Handlers) listMessageFiles(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	msgID, ok := pathID(c, "msgId")
	if !ok {
		return
	}

	files, err := h.messages.ListFiles(c.Request.Context(), chatID, msgID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]fileInfoResponse, 0, len(files.Files))
	for _, f := range files.Files {
		out = append(out, fileInfoResponse{
			ID:        f.ID,
			MessageID: f.MessageID,
			FileID:    f.FileID,
			FilePath:  f.Path,
			Filename:  f.Filename,
			Mimetype:  f.Mimetype,
			Size:      f.Size,
			Nonce:     f.Nonce,
			CreatedAt: f.CreatedAt.Format(time.RFC3339),
			Metadata:  files.Metadata,
		})
	}
	c.JSON(http.StatusOK, out)
}

type chunkUploadRequest struct {
	Chunk string `json:"chunk"`
	Nonce string `json:"nonce"`
}

func (h *Handlers) uploadChunk(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	msgID, ok := pathID(c, "msgId")
	if !ok {
		return
	}
	fileID, ok := pathID(c, "fileId")
	if !ok {
		return
	}
	index, ok := pathIndex(c)
	if !ok {
		return
	}

	var req chunkUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	status, err := h.transfers.UploadChunk(c.Request.Context(), chatID, msgID, fileID, index, req.Chunk, req.Nonce)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

func (h *Handlers) uploadMetadata(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	msgID, ok := pathID(c, "msgId")
	if !ok {
		return
	}
	fileID, ok := pathID(c, "fileId")
	if !ok {
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	if _, err := h.transfers.UploadMetadata(c.Request.Context(), chatID, msgID, fileID, raw); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) fileMetadata(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	msgID, ok := pathID(c, "msgId")
	if !ok {
		return
	}
	fileID, ok := pathID(c, "fileId")
	if !ok {
		return
	}

	side, err := h.transfers.GetMetadata(c.Request.Context(), chatID, msgID, fileID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, side)
}

func (h *Handlers) fileChunk(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	msgID, ok := pathID(c, "msgId")
	if !ok {
		return
	}
	fileID, ok := pathID(c, "fileId")
	if !ok {
		return
	}
	index, ok := pathIndex(c)
	if !ok {
		return
	}

	chunk, err := h.transfers.GetChunk(c.Request.Context(), chatID, msgID, fileID, index)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chunk)
}

func (h *Handlers) fileContent(c *gin.Context) {
	relPath := strings.TrimPrefix(c.Param("path"), "/")

	data, err := h.transfers.GetFile(c.Request.Context(), relPath)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"encrypted_data": data, "file_path": relPath})
}

// pathID parses a positive int64 path parameter, answering 400 itself
// on failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid " + name})
		return 0, false
	}
	return v, true
}

// pathIndex parses the chunk index path parameter; zero is a valid
// index.
func pathIndex(c *gin.Context) (int, bool) {
	v, err := strconv.Atoi(c.Param("index"))
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid index"})
		return 0, false
	}
	return v, true
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
	case errors.Is(err, common.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"detail": "forbidden"})
	case errors.Is(err, common.ErrInvalidPath):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid path"})
	case errors.Is(err, common.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid or missing token"})
	default:
		h.logger.Error(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.Request.URL.Path, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	}
}
