package routes

import (
	"roomie_server/controllers"
	"roomie_server/logging"
	"roomie_server/services"

	"github.com/gorilla/mux"
)

// RegisterChatRoutes sets up routes for chat-related operations under /api/chat
func RegisterChatRoutes(r *mux.Router, chatService *services.ChatService, logger logging.Logger) {
	controller := controllers.NewChatController(chatService, logger)

	chatRouter := r.PathPrefix("/api/chat").Subrouter()
	chatRouter.HandleFunc("/message", controller.HandleSendMessage).Methods("POST")
	chatRouter.HandleFunc("/messages", controller.HandleGetMessages).Methods("GET")
	chatRouter.HandleFunc("/read", controller.HandleMarkMessagesAsRead).Methods("POST")
}
