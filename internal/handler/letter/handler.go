package letter

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/emoaid/backend/internal/service/generation"
	letterService "github.com/zhouzirui/emoaid/backend/internal/service/letter"
	"github.com/zhouzirui/emoaid/backend/pkg/utils"
)

// Handler 处理“写给世界的信”请求
type Handler struct {
	letters *letterService.Service
}

// New 创建信件处理器
func New(letters *letterService.Service) *Handler {
	return &Handler{letters: letters}
}

// RegisterRoutes 注册信件相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/letters/emotions", h.handleListEmotions)
	r.Post("/letters", h.handleWrite)
}

func (h *Handler) handleListEmotions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"emotions": letterService.Emotions()})
}

func (h *Handler) handleWrite(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Person  string `json:"person"`
		Memory  string `json:"memory"`
		Emotion string `json:"emotion"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	emotion, err := letterService.ParseEmotion(payload.Emotion)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := h.letters.Write(r.Context(), letterService.Request{
		Person:  payload.Person,
		Memory:  payload.Memory,
		Emotion: emotion,
	})
	if err != nil {
		var authErr *generation.AuthError
		switch {
		case errors.Is(err, letterService.ErrMissingFields):
			utils.RespondWarning(w, http.StatusBadRequest, err.Error(), "Please fill in both fields.")
		case errors.As(err, &authErr):
			utils.RespondWarning(w, http.StatusPreconditionFailed, "api key not configured", generation.Describe(err))
		default:
			log.Printf("[letter] write failed: %v", err)
			utils.RespondWarning(w, http.StatusBadGateway, "letter generation failed", generation.Describe(err))
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"letter": text, "emotion": string(emotion)})
}
