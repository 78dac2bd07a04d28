package controllers

import (
	"net/http"

	"roomie_server/helpers"
)

// GeneratePresignedURL returns a presigned upload URL for a profile image
// and the key the client should store in its profile.
func (c *UserProfileController) GeneratePresignedURL(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	var payload struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, err)
		return
	}

	url, key, err := c.UserProfileService.UploadURL(r.Context(), uid, payload.FileName, payload.FileType)
	if err != nil {
		c.logger.Warn(r.Context(), "presign upload failed", "userId", uid, "error", err)
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url, "fileName": key})
}

// GetPresignedReadURL returns a presigned URL for reading a stored image.
func (c *UserProfileController) GetPresignedReadURL(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key string `json:"key"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, err)
		return
	}
	url, err := c.UserProfileService.ReadURL(r.Context(), payload.Key)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}
