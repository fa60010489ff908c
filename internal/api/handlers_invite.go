package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/dropspot/dropspot/internal/api/respond"
	"github.com/dropspot/dropspot/internal/api/validate"
	"github.com/dropspot/dropspot/internal/services"
)

// InviteHandler issues and redeems vault invites.
type InviteHandler struct {
	svc *services.InviteService
}

func NewInviteHandler(svc *services.InviteService) *InviteHandler { return &InviteHandler{svc: svc} }

// Issue GET /api/vaults/{vaultId}/invite
func (h *InviteHandler) Issue(w http.ResponseWriter, r *http.Request) {
	qr, err := h.svc.Issue(r.Context(), mux.Vars(r)["vaultId"], requesterID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"qr": qr})
}

// Redeem POST /api/invites/redeem
func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("payload", req.Payload); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	v, err := h.svc.Redeem(r.Context(), req.Payload, requesterID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, v)
}
