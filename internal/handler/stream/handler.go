package stream

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chathandler "github.com/zhouzirui/emoaid/backend/internal/handler/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/turn"
	"github.com/zhouzirui/emoaid/backend/pkg/utils"
)

// Handler runs a typed turn and reports pipeline progress via Server-Sent Events.
type Handler struct {
	turns chathandler.TurnRunner
}

// New creates a new stream handler
func New(turns chathandler.TurnRunner) *Handler {
	return &Handler{turns: turns}
}

// RegisterRoutes 注册 SSE 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

type stateEvent struct {
	SessionID string     `json:"sessionId"`
	State     turn.State `json:"state"`
}

type errorEvent struct {
	Error   string `json:"error"`
	Warning string `json:"warning,omitempty"`
	Status  int    `json:"status"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, flusher, sessionID, message); err != nil {
		log.Printf("[stream] session=%s: %v", sessionID, err)
	}
}

// HandleStreamRequest writes one `state` event per pipeline transition, then
// `result` or `warning`/`error`, then `end`.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID, message string) error {
	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	res, err := h.turns.Run(ctx, sessionID, turn.Input{
		Text: message,
		OnState: func(s turn.State) {
			utils.SendSSEEvent(w, flusher, "state", stateEvent{SessionID: sessionID, State: s})
		},
	})
	defer utils.SendSSEEvent(w, flusher, "end", map[string]string{"sessionId": sessionID})

	if err != nil {
		status, msg := chathandler.TurnErrorStatus(err)
		event := errorEvent{Error: msg, Status: status}
		if res != nil && res.Warning != "" {
			event.Warning = res.Warning
			utils.SendSSEEvent(w, flusher, "warning", event)
		} else {
			utils.SendSSEEvent(w, flusher, "error", event)
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	utils.SendSSEEvent(w, flusher, "result", res.View())
	return nil
}
