package routes

import (
	"roomie_server/controllers"
	"roomie_server/logging"
	"roomie_server/services"

	"github.com/gorilla/mux"
)

// RegisterInteractionRoutes sets up routes for interactions under /api/interactions
func RegisterInteractionRoutes(r *mux.Router, interactionService *services.InteractionService, logger logging.Logger) {
	controller := controllers.NewInteractionController(interactionService, logger)

	interactionRouter := r.PathPrefix("/api/interactions").Subrouter()
	interactionRouter.HandleFunc("/like", controller.HandleLike).Methods("POST")
	interactionRouter.HandleFunc("/pass", controller.HandlePass).Methods("POST")
	interactionRouter.HandleFunc("/unmatch", controller.HandleUnmatch).Methods("POST")
	interactionRouter.HandleFunc("/incoming", controller.HandleIncomingLikes).Methods("GET")
	interactionRouter.HandleFunc("/reveal", controller.HandleReveal).Methods("POST")
}
