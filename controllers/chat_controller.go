package controllers

import (
	"net/http"
	"strconv"

	"roomie_server/apperrors"
	"roomie_server/helpers"
	"roomie_server/logging"
	"roomie_server/services"
)

// ChatController struct
type ChatController struct {
	ChatService *services.ChatService
	logger      logging.Logger
}

// NewChatController initializes the chat controller
func NewChatController(service *services.ChatService, logger logging.Logger) *ChatController {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ChatController{ChatService: service, logger: logger}
}

// HandleGetMessages returns the latest messages of matchId, oldest first.
func (c *ChatController) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	matchID := r.URL.Query().Get("matchId")
	if matchID == "" {
		helpers.WriteError(w, apperrors.Validation("matchId is required"))
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = services.DefaultMessageLimit
	}

	messages, err := c.ChatService.Messages(r.Context(), matchID, uid, limit)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, messages)
}

// HandleSendMessage appends a message to a conversation.
func (c *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	var req struct {
		MatchID string `json:"matchId"`
		Text    string `json:"text"`
	}
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}

	msg, err := c.ChatService.SendMessage(r.Context(), req.MatchID, uid, req.Text)
	if err != nil {
		c.logger.Warn(r.Context(), "send message failed", "matchId", req.MatchID, "sender", uid, "error", err)
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusCreated, msg)
}

// HandleMarkMessagesAsRead clears the caller's unread count for matchId.
func (c *ChatController) HandleMarkMessagesAsRead(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	var req struct {
		MatchID string `json:"matchId"`
	}
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}
	if err := c.ChatService.MarkAsRead(r.Context(), req.MatchID, uid); err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Messages marked as read"})
}
