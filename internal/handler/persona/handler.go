package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
	"github.com/zhouzirui/emoaid/backend/internal/service/translation"
	"github.com/zhouzirui/emoaid/backend/pkg/utils"
)

// Handler 提供人设与语言目录
type Handler struct {
	personas persona.Store
}

// New 创建persona处理器
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Get("/languages", h.handleListLanguages)
}

// handleListPersonas 列出所有persona
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"personas":  h.personas.List(),
		"defaultId": persona.DefaultPersonaID,
	})
}

func (h *Handler) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"languages": translation.Languages(),
		"default":   translation.DefaultLanguage,
	})
}
