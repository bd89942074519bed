package speech

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/zhouzirui/emoaid/backend/internal/service/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/generation"
	speechsvc "github.com/zhouzirui/emoaid/backend/internal/service/speech"
	"github.com/zhouzirui/emoaid/backend/internal/service/translation"
	"github.com/zhouzirui/emoaid/backend/internal/service/turn"
	"github.com/zhouzirui/emoaid/backend/pkg/utils"
)

const maxAudioUpload = 25 << 20

// Handler 语音服务的HTTP处理器：单独的识别与合成端点，不写入会话历史
type Handler struct {
	transcriber speechsvc.Transcriber
	synthesizer speechsvc.Synthesizer
	chatSvc     *chatservice.Service
	callTimeout time.Duration
}

// New 创建语音处理器；transcriber 或 synthesizer 为 nil 时对应端点返回 501。
// callTimeout 限制每次外部调用，<=0 时使用 turn.DefaultCallTimeout
func New(transcriber speechsvc.Transcriber, synthesizer speechsvc.Synthesizer, chatSvc *chatservice.Service, callTimeout time.Duration) *Handler {
	if callTimeout <= 0 {
		callTimeout = turn.DefaultCallTimeout
	}
	return &Handler{
		transcriber: transcriber,
		synthesizer: synthesizer,
		chatSvc:     chatSvc,
		callTimeout: callTimeout,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/transcribe", h.handleTranscribe)
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Post("/synthesize/{sessionID}", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)
	})
}

// handleTranscribe 处理语音转文本请求
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		utils.RespondError(w, http.StatusNotImplemented, "transcription disabled")
		return
	}

	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	sampleRate := 0
	if raw := strings.TrimSpace(r.FormValue("sampleRate")); raw != "" {
		if sampleRate, err = strconv.Atoi(raw); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid sampleRate")
			return
		}
	}

	ctx, cancel := generation.WithTimeout(r.Context(), h.callTimeout)
	defer cancel()

	text, err := h.transcriber.Transcribe(ctx, data, inferAudioFormat(header.Filename), sampleRate)
	if err != nil {
		log.Printf("[speech] transcription error: %v", err)
		switch {
		case errors.Is(err, speechsvc.ErrUnsupportedAudio):
			utils.RespondError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, generation.ErrMissingCredential):
			utils.RespondWarning(w, http.StatusPreconditionFailed, "api key not configured", turn.WarningMissingCredential)
		case isTimeout(ctx, err):
			utils.RespondError(w, http.StatusGatewayTimeout, "speech recognition timed out")
		default:
			utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"text": text, "empty": text == ""})
}

// handleSynthesize 处理文本转语音请求。带 sessionID 时使用会话语言；
// Accept: audio/mpeg 返回原始音频，否则返回 data URI
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if h.synthesizer == nil {
		utils.RespondError(w, http.StatusNotImplemented, "speech synthesis disabled")
		return
	}

	var req struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	if sessionID := chi.URLParam(r, "sessionID"); sessionID != "" && req.Language == "" && h.chatSvc != nil {
		session, err := h.chatSvc.GetSession(r.Context(), sessionID)
		if err != nil {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		req.Language = session.Language
	}
	if req.Language == "" {
		req.Language = translation.DefaultLanguage
	}

	ctx, cancel := generation.WithTimeout(r.Context(), h.callTimeout)
	defer cancel()

	audio, err := h.synthesizer.Synthesize(ctx, req.Text, req.Language)
	if err != nil {
		log.Printf("[speech] synthesis error: %v", err)
		switch {
		case errors.Is(err, speechsvc.ErrUnsupportedLanguage):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		case isTimeout(ctx, err):
			utils.RespondError(w, http.StatusGatewayTimeout, "speech synthesis timed out")
		default:
			utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		}
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "audio/mpeg") {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
		w.Header().Set("Content-Disposition", "attachment; filename=speech.mp3")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(audio); err != nil {
			log.Printf("failed to write audio response: %v", err)
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"audioDataUri": speechsvc.DataURI(audio)})
}

// handleHealth 报告语音能力是否可用
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"transcription": h.transcriber != nil,
		"synthesis":     h.synthesizer != nil,
	})
}

func isTimeout(ctx context.Context, err error) bool {
	var timeoutErr *generation.TimeoutError
	return errors.As(err, &timeoutErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3", ".wav", ".webm", ".m4a", ".ogg", ".flac":
		return strings.TrimPrefix(ext, ".")
	default:
		return "wav"
	}
}
