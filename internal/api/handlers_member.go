package api

import (
	"net/http"

	respond "github.com/dropspot/dropspot/internal/api/respond"
	"github.com/dropspot/dropspot/internal/services"
)

// MemberHandler serves the member directory.
type MemberHandler struct {
	svc *services.MemberService
}

func NewMemberHandler(svc *services.MemberService) *MemberHandler { return &MemberHandler{svc: svc} }

// List GET /api/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"members": members, "count": len(members)})
}
