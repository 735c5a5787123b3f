package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kiraleos/tweetsmith/internal/auth"
	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/protocol"
)

type APIHandler struct {
	chatService *core.ChatService
	relay       *core.Relay
}

func NewAPIHandler(cs *core.ChatService, relay *core.Relay) *APIHandler {
	return &APIHandler{chatService: cs, relay: relay}
}

// ChatActionHandler serves POST /api/chats: {action: save|get|list, chatId?, chatData?}.
func (h *APIHandler) ChatActionHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req protocol.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	switch req.Action {
	case protocol.ActionSave:
		if req.ChatID == "" || req.ChatData == nil {
			writeError(w, http.StatusBadRequest, "chatId and chatData are required")
			return
		}
		if err := h.chatService.SaveChat(r.Context(), userID, req.ChatID, *req.ChatData); err != nil {
			h.serviceError(w, err, "Failed to save chat", userID, req.ChatID)
			return
		}
		writeJSON(w, http.StatusOK, protocol.SaveResponse{Success: true})

	case protocol.ActionGet:
		if req.ChatID == "" {
			writeError(w, http.StatusBadRequest, "chatId is required")
			return
		}
		chat, err := h.chatService.GetChat(r.Context(), userID, req.ChatID)
		if err != nil {
			h.serviceError(w, err, "Failed to get chat", userID, req.ChatID)
			return
		}
		writeJSON(w, http.StatusOK, protocol.GetResponse{Data: chat})

	case protocol.ActionList:
		h.writeChatIDs(w, r, userID)

	default:
		writeError(w, http.StatusBadRequest, "Invalid action")
	}
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	h.writeChatIDs(w, r, auth.UserIDFromContext(r.Context()))
}

func (h *APIHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")

	chat, err := h.chatService.GetChat(r.Context(), userID, chatID)
	if err != nil {
		h.serviceError(w, err, "Failed to get chat", userID, chatID)
		return
	}
	if chat == nil {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *APIHandler) writeChatIDs(w http.ResponseWriter, r *http.Request, userID string) {
	ids, err := h.chatService.ListChatIDs(r.Context(), userID)
	if err != nil {
		h.serviceError(w, err, "Failed to list chats", userID, "")
		return
	}
	writeJSON(w, http.StatusOK, protocol.ListResponse{ChatIDs: ids})
}

// GenerateHandler serves POST /api/generate and streams the tweet as a plain-text body,
// flushing after every fragment. A provider failure before the first fragment is a 502; a
// failure after it aborts the response so the client sees a truncated body and a broken
// connection instead of a clean end.
func (h *APIHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var spec core.PromptSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// Generate only fails on invalid input; provider failures arrive through the stream.
	stream, err := h.relay.Generate(r.Context(), spec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	frag, err := stream.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadGateway, "Failed to generate tweet")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for err == nil {
		if _, werr := io.WriteString(w, frag); werr != nil {
			log.Debug().Err(werr).Msg("Client went away during generation")
			return
		}
		_ = rc.Flush()
		frag, err = stream.Next()
	}
	if !errors.Is(err, io.EOF) {
		panic(http.ErrAbortHandler)
	}
}

// serviceError maps ChatService errors to responses: validation detail is returned to the
// caller, anything else is logged and reported generically.
func (h *APIHandler) serviceError(w http.ResponseWriter, err error, msg, userID, chatID string) {
	if errors.Is(err, core.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Error().Err(err).Str("user_id", userID).Str("chat_id", chatID).Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: msg})
}
