package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chathandler "github.com/zhouzirui/emoaid/backend/internal/handler/chat"
	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/emoaid/backend/internal/service/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/turn"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
	// 单条消息（含 base64 音频分片）的上限
	maxMessageSize = 8 << 20
)

// WebSocketHandler 会话级 WebSocket：接收配置、文本与分片音频，推送流水线状态与结果
type WebSocketHandler struct {
	turns        chathandler.TurnRunner
	chatSvc      *chatservice.Service
	personaStore persona.Store
	upgrader     websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(turns chathandler.TurnRunner, chatSvc *chatservice.Service, personaStore persona.Store) *WebSocketHandler {
	return &WebSocketHandler{
		turns:        turns,
		chatSvc:      chatSvc,
		personaStore: personaStore,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterSessionRoutes 在会话子路由上注册 WebSocket (/session/{sessionID}/ws)
func (h *WebSocketHandler) RegisterSessionRoutes(sr chi.Router) {
	sr.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ConfigMessage 修改会话设置，nil 字段保持不变
type ConfigMessage struct {
	PersonaID    *string `json:"personaId,omitempty"`
	Language     *string `json:"language,omitempty"`
	VoiceEnabled *bool   `json:"voiceEnabled,omitempty"`
}

// TurnMessage 发起一轮对话；AudioData 为 base64（JSON []byte）
type TurnMessage struct {
	Text       string `json:"text"`
	AudioData  []byte `json:"audioData,omitempty"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
}

// AudioMessage 分片上传录音，IsFinal 时触发一轮对话
type AudioMessage struct {
	AudioData  []byte `json:"audioData"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
	IsFinal    bool   `json:"isFinal"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	sessionID   string
	audioFormat string
	sampleRate  int
	buffer      bytes.Buffer
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, "connected", sessionID, session)

	state := &connectionState{sessionID: sessionID}
	for {
		// 一轮对话可能超过 pongWait，每次读取前重置期限
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		h.handleMessage(ctx, conn, state, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "config":
		h.handleConfigMessage(ctx, conn, state, msg.Data)
	case "turn":
		h.handleTurnMessage(ctx, conn, state, msg.Data)
	case "audio":
		h.handleAudioMessage(ctx, conn, state, msg.Data)
	default:
		h.sendError(conn, state.sessionID, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleConfigMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(conn, state.sessionID, "invalid config payload")
		return
	}

	update := chatservice.Update{Language: cfg.Language, VoiceEnabled: cfg.VoiceEnabled}
	if cfg.PersonaID != nil {
		who, ok := h.personaStore.FindByID(*cfg.PersonaID)
		if !ok {
			h.sendError(conn, state.sessionID, "persona not found")
			return
		}
		update.PersonaID = &who.ID
	}

	session, err := h.chatSvc.UpdateSession(ctx, state.sessionID, update)
	if err != nil {
		h.sendError(conn, state.sessionID, err.Error())
		return
	}

	log.Printf("[websocket] config applied session=%s persona=%s language=%s voice=%v", session.ID, session.PersonaID, session.Language, session.VoiceEnabled)
	h.send(conn, "config", state.sessionID, session)
}

func (h *WebSocketHandler) handleTurnMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var msg TurnMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(conn, state.sessionID, "invalid turn payload")
		return
	}

	h.runTurn(ctx, conn, state, turn.Input{
		Text:           msg.Text,
		Audio:          msg.AudioData,
		AudioFormat:    msg.Format,
		SampleRateHint: msg.SampleRate,
	})
}

func (h *WebSocketHandler) handleAudioMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		h.sendError(conn, state.sessionID, "invalid audio payload")
		return
	}

	if len(audio.AudioData) > 0 {
		if state.buffer.Len()+len(audio.AudioData) > maxMessageSize {
			state.buffer.Reset()
			h.sendError(conn, state.sessionID, "recording too large")
			return
		}
		state.buffer.Write(audio.AudioData)
	}
	if audio.Format != "" {
		state.audioFormat = audio.Format
	}
	if audio.SampleRate > 0 {
		state.sampleRate = audio.SampleRate
	}

	if !audio.IsFinal {
		return
	}

	data := append([]byte(nil), state.buffer.Bytes()...)
	state.buffer.Reset()
	log.Printf("[websocket] processing buffered audio session=%s format=%s bytes=%d", state.sessionID, state.audioFormat, len(data))

	h.runTurn(ctx, conn, state, turn.Input{
		Audio:          data,
		AudioFormat:    state.audioFormat,
		SampleRateHint: state.sampleRate,
	})
}

func (h *WebSocketHandler) runTurn(ctx context.Context, conn *websocket.Conn, state *connectionState, in turn.Input) {
	in.OnState = func(s turn.State) {
		h.send(conn, "state", state.sessionID, map[string]turn.State{"state": s})
	}

	res, err := h.turns.Run(ctx, state.sessionID, in)
	if err != nil {
		status, message := chathandler.TurnErrorStatus(err)
		if res != nil && res.Warning != "" {
			h.send(conn, "warning", state.sessionID, map[string]any{"message": message, "warning": res.Warning, "status": status})
			return
		}
		log.Printf("[websocket] turn failed session=%s: %v", state.sessionID, err)
		h.sendError(conn, state.sessionID, message)
		return
	}

	h.send(conn, "result", state.sessionID, res.View())
}

func (h *WebSocketHandler) send(conn *websocket.Conn, kind, sessionID string, data interface{}) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", kind, err)
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, sessionID, message string) {
	h.send(conn, "error", sessionID, map[string]string{"message": message})
}

// pingLoop 定期发送ping消息；WriteControl 可与其他写操作并发调用
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
