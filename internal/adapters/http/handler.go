package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/app/chatlog"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/app/conversation"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/domain"
	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/observability"
)

type Server struct {
	svc      *conversation.Service
	validate *validator.Validate
}

func NewServer(svc *conversation.Service) http.Handler {
	s := &Server{
		svc:      svc,
		validate: validator.New(),
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /chats → POST: create, GET: list
	mux.HandleFunc("/chats", s.handleChats)

	// /chats/{id}          → GET: chat + messages
	// /chats/{id}/messages → POST: send message
	mux.HandleFunc("/chats/", s.handleChatWithID)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createChatRequest struct {
	ChatID string `json:"chatId" validate:"omitempty,max=128,excludesall=/#"`
	Title  string `json:"title" validate:"max=200"`
}

type chatResponse struct {
	ChatID    string `json:"chatId"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

type listChatsResponse struct {
	Chats []chatResponse `json:"chats"`
}

type messageResponse struct {
	SK        string `json:"sk"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

type getChatResponse struct {
	Chat     *chatResponse     `json:"chat"`
	Messages []messageResponse `json:"messages"`
}

type sendMessageRequest struct {
	Prompt string `json:"prompt"`
}

type sendMessageResponse struct {
	Prompt    string `json:"prompt"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"createdAt"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /chats
func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateChat(w, r)
	case http.MethodGet:
		s.handleListChats(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /chats/{id} or /chats/{id}/messages
func (s *Server) handleChatWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/chats/")
	parts := strings.Split(path, "/")
	id := parts[0]

	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.KindChatIDRequired})
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetChat(w, r, domain.ConversationID(id))
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "messages" {
		switch r.Method {
		case http.MethodPost:
			s.handleSendMessage(w, r, domain.ConversationID(id))
		default:
			methodNotAllowed(w)
		}
		return
	}

	http.NotFound(w, r)
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if !s.decode(w, r, &req) {
		return
	}

	conv, err := s.svc.CreateConversation(r.Context(), domain.NewConversation{
		ID:    domain.ConversationID(req.ChatID),
		Title: req.Title,
	})
	if err != nil {
		fail(w, r, "create_chat", err)
		return
	}

	writeJSON(w, http.StatusCreated, toChatResponse(conv))
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	convs, err := s.svc.ListConversations(r.Context())
	if err != nil {
		fail(w, r, "list_chats", err)
		return
	}

	resp := listChatsResponse{Chats: make([]chatResponse, 0, len(convs))}
	for _, c := range convs {
		resp.Chats = append(resp.Chats, *toChatResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request, id domain.ConversationID) {
	conv, msgs, err := s.svc.GetConversation(r.Context(), id)
	if err != nil {
		fail(w, r, "get_chat", err)
		return
	}

	resp := getChatResponse{
		Messages: make([]messageResponse, 0, len(msgs)),
	}
	if conv != nil {
		resp.Chat = toChatResponse(conv)
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageResponse{
			SK:        m.Seq,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: formatTime(m.CreatedAt),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.ConversationID) {
	var req sendMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	ex, err := s.svc.SendMessage(r.Context(), conversation.SendMessageInput{
		ConversationID: id,
		Prompt:         req.Prompt,
	})
	if err != nil {
		fail(w, r, "send_message", err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		Prompt:    ex.Prompt,
		Answer:    ex.Answer,
		CreatedAt: formatTime(ex.CreatedAt),
	})
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toChatResponse(c *domain.Conversation) *chatResponse {
	return &chatResponse{
		ChatID:    string(c.ID),
		Title:     c.Title,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return chatlog.FormatTimestamp(t)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

// decode reads an optional JSON body into v and validates it. An empty body is
// treated as {}. It writes the 400 response itself and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.KindInvalidBody, Detail: "invalid JSON body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.KindInvalidBody, Detail: err.Error()})
		return false
	}
	return true
}

// fail maps an error to its status code and {error, detail} envelope.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !conversation.IsClientError(err) {
		observability.LoggerFromContext(r.Context()).Error("request failed", "op", op, "error", err)
	}

	if ve, ok := domain.IsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Kind, Detail: ve.Detail})
		return
	}
	if errors.Is(err, domain.ErrConversationNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "chat_not_found", Detail: err.Error()})
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: op + "_failed", Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed"})
}
