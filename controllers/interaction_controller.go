package controllers

import (
	"net/http"

	"roomie_server/helpers"
	"roomie_server/logging"
	"roomie_server/services"
)

// InteractionController handles likes, passes, unmatches and incoming likes.
type InteractionController struct {
	InteractionService *services.InteractionService
	logger             logging.Logger
}

func NewInteractionController(service *services.InteractionService, logger logging.Logger) *InteractionController {
	if logger == nil {
		logger = logging.Nop()
	}
	return &InteractionController{InteractionService: service, logger: logger}
}

type targetRequest struct {
	TargetID string `json:"targetId"`
}

// decodeTarget reads the caller and {"targetId"} from r.
func decodeTarget(r *http.Request) (string, string, error) {
	uid, err := helpers.UserID(r)
	if err != nil {
		return "", "", err
	}
	var req targetRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		return "", "", err
	}
	return uid, req.TargetID, nil
}

// HandleLike records a like and reports whether it completed a match.
func (c *InteractionController) HandleLike(w http.ResponseWriter, r *http.Request) {
	uid, target, err := decodeTarget(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	res, err := c.InteractionService.Like(r.Context(), uid, target)
	if err != nil {
		c.logger.Warn(r.Context(), "like failed", "from", uid, "to", target, "error", err)
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, res)
}

func (c *InteractionController) HandlePass(w http.ResponseWriter, r *http.Request) {
	uid, target, err := decodeTarget(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	if err := c.InteractionService.Pass(r.Context(), uid, target); err != nil {
		c.logger.Warn(r.Context(), "pass failed", "from", uid, "to", target, "error", err)
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Passed"})
}

// HandleUnmatch removes the match with targetId and its conversation.
func (c *InteractionController) HandleUnmatch(w http.ResponseWriter, r *http.Request) {
	uid, target, err := decodeTarget(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	if err := c.InteractionService.Unmatch(r.Context(), uid, target); err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Unmatched", "matchId": services.MatchKey(uid, target)})
}

func (c *InteractionController) HandleIncomingLikes(w http.ResponseWriter, r *http.Request) {
	uid, err := helpers.UserID(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	likes, err := c.InteractionService.IncomingLikes(r.Context(), uid)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, likes)
}

// HandleReveal unhides the sender of an incoming like.
func (c *InteractionController) HandleReveal(w http.ResponseWriter, r *http.Request) {
	uid, target, err := decodeTarget(r)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	in, err := c.InteractionService.Reveal(r.Context(), uid, target)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, in)
}
