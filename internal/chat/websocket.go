package chat

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// HandleWebSocket handles GET /ws. Each text frame carries a ChatRequest and
// is answered with a ChatResponse, sharing the transcript with POST /chat.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()
	ws.SetReadLimit(h.cfg.MaxRequestBodySize)

	ctx := r.Context()
	reqID := chiMiddleware.GetReqID(ctx)
	slog.Info("WebSocket chat connected", "request_id", reqID, "ip", r.RemoteAddr)

	for frame := 1; ; frame++ {
		var req ChatRequest
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "request_id", reqID)
				return
			}
			slog.Warn("WebSocket read error", "error", err, "request_id", reqID)
			_ = ws.Close(websocket.StatusUnsupportedData, "invalid request body")
			return
		}

		response := h.exchange(r, ChannelWebSocket, req.Message, reqID+"#"+strconv.Itoa(frame))
		if err := wsjson.Write(ctx, ws, ChatResponse{Response: response}); err != nil {
			slog.Warn("WebSocket write error", "error", err, "request_id", reqID)
			return
		}
	}
}
