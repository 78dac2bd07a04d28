package routes

import (
	"roomie_server/controllers"
	"roomie_server/services"

	"github.com/gorilla/mux"
)

// RegisterMatchRoutes sets up routes for matches under /api/matches
func RegisterMatchRoutes(r *mux.Router, matchService *services.MatchService) {
	controller := controllers.NewMatchController(matchService)

	r.HandleFunc("/api/matches", controller.HandleGetMatches).Methods("GET")
}
