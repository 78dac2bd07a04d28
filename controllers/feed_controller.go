package controllers

import (
	"net/http"
	"strconv"

	"roomie_server/apperrors"
	"roomie_server/helpers"
	"roomie_server/services"
)

// FeedController serves the swipe feed of the signed-in user.
type FeedController struct {
	FeedService *services.FeedService
}

func NewFeedController(service *services.FeedService) *FeedController {
	return &FeedController{FeedService: service}
}

// HandleGetFeed fetches more candidates and returns the whole feed.
// radiusKm is optional.
func (c *FeedController) HandleGetFeed(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}

	var radius float64
	if s := r.URL.Query().Get("radiusKm"); s != "" {
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil || radius < 0 {
			helpers.WriteError(w, apperrors.Validation("radiusKm must be a positive number"))
			return
		}
	}

	page, err := c.FeedService.Fetch(r.Context(), uid, radius)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, page)
}

// HandleSwipe likes or passes on a feed item.
func (c *FeedController) HandleSwipe(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	var req struct {
		ItemID string               `json:"itemId"`
		Action services.SwipeAction `json:"action"`
	}
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}

	res, err := c.FeedService.Swipe(r.Context(), uid, req.ItemID, req.Action)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, res)
}

// HandleLogout drops the caller's feed session.
func (c *FeedController) HandleLogout(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	c.FeedService.Logout(uid)
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
