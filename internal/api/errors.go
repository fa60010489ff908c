package api

import (
	"errors"
	"net/http"

	respond "github.com/dropspot/dropspot/internal/api/respond"
	"github.com/dropspot/dropspot/internal/model"
)

// writeDomainError maps service error sentinels onto HTTP statuses. Anything
// unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrReplayDetected):
		respond.WriteUnauthorized(w, err.Error())
	case errors.Is(err, model.ErrForbidden):
		respond.WriteForbidden(w, err.Error())
	case errors.Is(err, model.ErrAlreadyMember),
		errors.Is(err, model.ErrAccountExists):
		respond.WriteConflict(w, err.Error())
	case errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidInvite),
		errors.Is(err, model.ErrCreationFailed),
		errors.Is(err, model.ErrDeletionFailed):
		respond.WriteBadRequest(w, err.Error())
	default:
		respond.WriteInternalError(w, err.Error())
	}
}
