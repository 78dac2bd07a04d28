package controllers

import (
	"net/http"

	"roomie_server/helpers"
	"roomie_server/logging"
	"roomie_server/models"
	"roomie_server/services"

	"github.com/gorilla/mux"
)

// UserProfileController handles requests related to user profiles
type UserProfileController struct {
	UserProfileService *services.UserProfileService
	logger             logging.Logger
}

// NewUserProfileController creates a new instance of UserProfileController
func NewUserProfileController(userProfileService *services.UserProfileService, logger logging.Logger) *UserProfileController {
	if logger == nil {
		logger = logging.Nop()
	}
	return &UserProfileController{UserProfileService: userProfileService, logger: logger}
}

// UpsertUserProfile creates or replaces the caller's profile.
func (c *UserProfileController) UpsertUserProfile(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	var profile models.UserProfile
	if err := helpers.DecodeJSON(r, &profile); err != nil {
		helpers.WriteError(w, err)
		return
	}
	profile.UserID = uid

	saved, err := c.UserProfileService.Upsert(r.Context(), &profile)
	if err != nil {
		c.logger.Warn(r.Context(), "profile upsert failed", "userId", uid, "error", err)
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, saved)
}

// GetUserProfile returns the profile at {uid}.
func (c *UserProfileController) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := c.UserProfileService.Get(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, profile)
}

// DeleteUserProfile deletes the caller's account and everything hanging off it.
func (c *UserProfileController) DeleteUserProfile(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	if err := c.UserProfileService.DeleteAccount(r.Context(), uid); err != nil {
		c.logger.Error(r.Context(), "account deletion failed", "userId", uid, "error", err)
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Profile deleted successfully", "userId": uid})
}

// BlockUser adds targetId to the caller's block list.
func (c *UserProfileController) BlockUser(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	var req struct {
		TargetID string `json:"targetId"`
	}
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}
	if err := c.UserProfileService.Block(r.Context(), uid, req.TargetID); err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "User blocked"})
}
