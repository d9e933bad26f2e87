package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/ashureev/salesbot/internal/api"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// ChatRequest is the body of POST /chat and of each /ws frame.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply to a ChatRequest.
type ChatResponse struct {
	Response string `json:"response"`
}

// HandlerConfig configures the HTTP surface.
type HandlerConfig struct {
	// IndexPath is read on every GET /.
	IndexPath string
	// OriginPatterns are the host patterns accepted for websocket upgrades.
	OriginPatterns     []string
	MaxRequestBodySize int64
}

// Handler serves the conversation endpoints.
type Handler struct {
	svc       *Service
	cfg       HandlerConfig
	log       ConversationLogger
	sessionID string
}

// NewHandler creates a Handler. A nil logger disables conversation logging.
func NewHandler(svc *Service, cfg HandlerConfig, conversationLogger ConversationLogger) *Handler {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if len(cfg.OriginPatterns) == 0 {
		cfg.OriginPatterns = []string{"*"}
	}
	return &Handler{
		svc:       svc,
		cfg:       cfg,
		log:       conversationLogger,
		sessionID: uuid.NewString(),
	}
}

// RegisterRoutes registers the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleIndex)
	r.Get("/history", h.HandleHistory)
	r.Post("/chat", h.HandleChat)
	r.Get("/ws", h.HandleWebSocket)
}

// HandleIndex handles GET / by reading the page from disk.
func (h *Handler) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := os.ReadFile(h.cfg.IndexPath)
	if err != nil {
		slog.Error("Failed to read index page", "path", h.cfg.IndexPath, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		slog.Debug("Failed to write index page", "error", err)
	}
}

// HandleHistory handles GET /history.
func (h *Handler) HandleHistory(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, h.svc.History())
}

// HandleChat handles POST /chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	response := h.exchange(r, ChannelHTTP, req.Message, reqID)
	api.JSON(w, http.StatusOK, ChatResponse{Response: response})
}

// exchange runs one turn and records both sides in the conversation log.
func (h *Handler) exchange(r *http.Request, channel, message, requestID string) string {
	if message == "" {
		return h.svc.Chat(r.Context(), message)
	}

	slog.Info("Chat request", "channel", channel, "message_length", len(message), "request_id", requestID)
	h.log.Log(ConversationLogEvent{
		SessionID:  h.sessionID,
		Channel:    channel,
		Direction:  DirectionOutbound,
		EventType:  EventUserMessage,
		ContentRaw: message,
		Meta:       map[string]any{"request_id": requestID},
	})

	response := h.svc.Chat(r.Context(), message)

	h.log.Log(ConversationLogEvent{
		SessionID:  h.sessionID,
		Channel:    channel,
		Direction:  DirectionInbound,
		EventType:  EventAssistantMessage,
		ContentRaw: response,
		Meta:       map[string]any{"request_id": requestID},
	})
	return response
}
