package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/emoaid/backend/internal/model/chat"
	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
	chatService "github.com/zhouzirui/emoaid/backend/internal/service/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/translation"
	"github.com/zhouzirui/emoaid/backend/internal/service/turn"
	"github.com/zhouzirui/emoaid/backend/pkg/utils"
)

// maxAudioUpload 限制单次上传的录音大小
const maxAudioUpload = 25 << 20

// TurnRunner executes a turn for a stored session.
type TurnRunner interface {
	Run(ctx context.Context, sessionID string, in turn.Input) (*turn.Result, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	personaStore persona.Store
	turns        TurnRunner
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, personaStore persona.Store, turns TurnRunner) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
		turns:        turns,
	}
}

// RegisterRoutes 注册聊天相关的路由；extra 挂载到同一个 /session/{sessionID} 子路由上
func (h *Handler) RegisterRoutes(r chi.Router, extra ...func(chi.Router)) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Patch("/", h.handleUpdateSession)
		sr.Delete("/", h.handleEndSession)
		sr.Get("/transcript", h.handleTranscript)
		sr.Post("/turn", h.handleTurn)
		for _, register := range extra {
			register(sr)
		}
	})
}

type sessionPayload struct {
	PersonaID    *string `json:"personaId"`
	Language     *string `json:"language"`
	VoiceEnabled *bool   `json:"voiceEnabled"`
}

// validate 检查人设与语言是否在目录中
func (h *Handler) validate(p sessionPayload) string {
	if p.PersonaID != nil {
		if _, ok := h.personaStore.FindByID(*p.PersonaID); !ok {
			return "persona not found"
		}
	}
	if p.Language != nil && strings.TrimSpace(*p.Language) != "" {
		if _, ok := translation.ResolveLanguage(*p.Language); !ok {
			return "unsupported language"
		}
	}
	return ""
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload sessionPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if payload.PersonaID == nil || *payload.PersonaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}
	if msg := h.validate(payload); msg != "" {
		utils.RespondError(w, http.StatusBadRequest, msg)
		return
	}

	// 名称与 ID 均可，统一存储规范 ID
	who, _ := h.personaStore.FindByID(*payload.PersonaID)
	opts := chatService.Options{PersonaID: who.ID}
	if payload.Language != nil {
		opts.Language = *payload.Language
	}
	if payload.VoiceEnabled != nil {
		opts.VoiceEnabled = *payload.VoiceEnabled
	}

	session, err := h.chatSvc.CreateSession(r.Context(), opts)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleUpdateSession 修改人设、语言或语音开关，下一轮生效
func (h *Handler) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var payload sessionPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := h.validate(payload); msg != "" {
		utils.RespondError(w, http.StatusBadRequest, msg)
		return
	}

	update := chatService.Update{Language: payload.Language, VoiceEnabled: payload.VoiceEnabled}
	if payload.PersonaID != nil {
		who, _ := h.personaStore.FindByID(*payload.PersonaID)
		update.PersonaID = &who.ID
	}

	session, err := h.chatSvc.UpdateSession(r.Context(), chi.URLParam(r, "sessionID"), update)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageView struct {
	chat.Message
	Rendered string `json:"rendered"`
}

// handleTranscript 返回会话历史；order=recent 时最新的在前
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.chatSvc.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var messages []chat.Message
	if r.URL.Query().Get("order") == "recent" {
		messages = transcript.Recent()
	} else {
		messages = transcript.Entries()
	}

	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, messageView{Message: m, Rendered: m.Rendered()})
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": views})
}

// handleTurn 接收 JSON {text} 或 multipart（audio/text/sampleRate）并执行一轮对话
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	in, err := readTurnInput(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.turns.Run(r.Context(), sessionID, in)
	if err != nil {
		status, message := TurnErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Printf("[chat] turn failed session=%s: %v", sessionID, err)
		}
		warning := ""
		if res != nil {
			warning = res.Warning
		}
		if warning != "" {
			utils.RespondWarning(w, status, message, warning)
		} else {
			utils.RespondError(w, status, message)
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, res.View())
}

func readTurnInput(r *http.Request) (turn.Input, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var payload struct {
			Text string `json:"text"`
		}
		if err := utils.DecodeJSON(r, &payload); err != nil {
			return turn.Input{}, err
		}
		return turn.Input{Text: payload.Text}, nil
	}

	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		return turn.Input{}, errors.New("failed to parse multipart form: " + err.Error())
	}
	defer r.MultipartForm.RemoveAll()

	in := turn.Input{Text: r.FormValue("text")}
	if raw := strings.TrimSpace(r.FormValue("sampleRate")); raw != "" {
		rate, err := strconv.Atoi(raw)
		if err != nil || rate <= 0 {
			return turn.Input{}, errors.New("invalid sampleRate")
		}
		in.SampleRateHint = rate
	}

	file, header, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return turn.Input{}, errors.New("invalid audio part")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
	if err != nil {
		return turn.Input{}, errors.New("failed to read audio")
	}
	in.Audio = data
	in.AudioFormat = header.Header.Get("Content-Type")
	if in.AudioFormat == "" || in.AudioFormat == "application/octet-stream" {
		in.AudioFormat = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	}
	return in, nil
}

// TurnErrorStatus maps a turn error to an HTTP status and message.
func TurnErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, turn.ErrNoInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, turn.ErrMissingCredential):
		return http.StatusPreconditionFailed, "api key not configured"
	case errors.Is(err, turn.ErrUnknownPersona):
		return http.StatusConflict, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "request cancelled"
	default:
		return http.StatusInternalServerError, "turn failed"
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrPersonaRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
