package routes

import (
	"roomie_server/controllers"
	"roomie_server/logging"
	"roomie_server/services"

	"github.com/gorilla/mux"
)

// RegisterUserProfileRoutes sets up routes for profile operations under /api/profile
func RegisterUserProfileRoutes(r *mux.Router, userProfileService *services.UserProfileService, logger logging.Logger) {
	controller := controllers.NewUserProfileController(userProfileService, logger)

	profileRouter := r.PathPrefix("/api/profile").Subrouter()
	profileRouter.HandleFunc("", controller.UpsertUserProfile).Methods("PUT")
	profileRouter.HandleFunc("", controller.DeleteUserProfile).Methods("DELETE")
	profileRouter.HandleFunc("/block", controller.BlockUser).Methods("POST")
	profileRouter.HandleFunc("/upload-url", controller.GeneratePresignedURL).Methods("POST")
	profileRouter.HandleFunc("/read-url", controller.GetPresignedReadURL).Methods("POST")
	profileRouter.HandleFunc("/{uid}", controller.GetUserProfile).Methods("GET")
}
