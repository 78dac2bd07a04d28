package routes

import (
	"roomie_server/controllers"
	"roomie_server/services"

	"github.com/gorilla/mux"
)

// RegisterFeedRoutes sets up the feed under /api/feed and session logout
func RegisterFeedRoutes(r *mux.Router, feedService *services.FeedService) {
	controller := controllers.NewFeedController(feedService)

	feedRouter := r.PathPrefix("/api/feed").Subrouter()
	feedRouter.HandleFunc("", controller.HandleGetFeed).Methods("GET")
	feedRouter.HandleFunc("/swipe", controller.HandleSwipe).Methods("POST")

	r.HandleFunc("/api/session/logout", controller.HandleLogout).Methods("POST")
}
