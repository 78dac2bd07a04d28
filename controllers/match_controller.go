package controllers

import (
	"net/http"

	"roomie_server/helpers"
	"roomie_server/services"
)

type MatchController struct {
	MatchService *services.MatchService
}

func NewMatchController(service *services.MatchService) *MatchController {
	return &MatchController{MatchService: service}
}

// HandleGetMatches lists the caller's matches, most recent activity first.
func (c *MatchController) HandleGetMatches(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	matches, err := c.MatchService.List(r.Context(), uid)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, matches)
}
