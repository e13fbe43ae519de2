package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wanderlist/wanderlist-api/config"
	"github.com/wanderlist/wanderlist-api/invites"
	"github.com/wanderlist/wanderlist-api/models"
)

func errRequired(field string) error {
	return fmt.Errorf("%s is required", field)
}

// engineErrorStatus maps the engine's error taxonomy onto HTTP statuses
// so every handler reports the same failure the same way.
func engineErrorStatus(message string, w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	var nf *models.NotFoundError
	var ad *models.AuthorizationDenied
	var rd *invites.RedeemDenied

	switch {
	case errors.As(err, &ve):
		config.ErrorStatus(message, http.StatusBadRequest, w, err)
	case errors.As(err, &nf):
		config.ErrorStatus(message, http.StatusNotFound, w, err)
	case errors.As(err, &ad):
		config.ErrorStatus(message, http.StatusForbidden, w, err)
	case errors.As(err, &rd):
		config.ErrorStatus(message, redeemDeniedStatus(rd.Reason), w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}

// redeemDeniedStatus distinguishes codes that never existed from codes
// that exist but can no longer be used, and targeted codes presented by
// the wrong account.
func redeemDeniedStatus(reason invites.FailReason) int {
	switch reason {
	case invites.ReasonNotFound:
		return http.StatusNotFound
	case invites.ReasonEmailMismatch:
		return http.StatusForbidden
	default:
		return http.StatusGone
	}
}
