package api

import (
	"encoding/json"
	"net/http"

	respond "github.com/dropspot/dropspot/internal/api/respond"
	"github.com/dropspot/dropspot/internal/api/validate"
	"github.com/dropspot/dropspot/internal/services"
	"github.com/dropspot/dropspot/internal/session"
)

// AuthHandler exchanges identity tokens for sessions.
type AuthHandler struct {
	members  *services.MemberService
	sessions session.Store
}

func NewAuthHandler(members *services.MemberService, sessions session.Store) *AuthHandler {
	return &AuthHandler{members: members, sessions: sessions}
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("token", req.Token); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	member, err := h.members.Authenticate(r.Context(), req.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	token, err := h.sessions.Create(r.Context(), member.MemberID)
	if err != nil {
		respond.WriteInternalError(w, "session creation failed")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessionToken": token,
		"member":       member,
	})
}

// Check GET /api/auth/check (behind SessionMiddleware)
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	member, err := h.members.Get(r.Context(), requesterID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, member)
}

// Logout POST /api/auth/logout (behind SessionMiddleware)
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), bearerToken(r)); err != nil {
		respond.WriteInternalError(w, "session deletion failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
