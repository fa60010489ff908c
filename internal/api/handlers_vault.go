package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/dropspot/dropspot/internal/api/respond"
	"github.com/dropspot/dropspot/internal/api/validate"
	"github.com/dropspot/dropspot/internal/model"
	"github.com/dropspot/dropspot/internal/services"
)

// VaultHandler is a thin HTTP transport over VaultService.
type VaultHandler struct {
	svc *services.VaultService
}

func NewVaultHandler(svc *services.VaultService) *VaultHandler { return &VaultHandler{svc: svc} }

// CreateVault POST /api/vaults
func (h *VaultHandler) CreateVault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string   `json:"name"`
		Lat  *float64 `json:"lat"`
		Lng  *float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.VaultName(req.Name); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	var loc *model.LatLng
	if req.Lat != nil && req.Lng != nil {
		loc = &model.LatLng{Latitude: *req.Lat, Longitude: *req.Lng}
	}
	out, err := h.svc.Create(r.Context(), requesterID(r), req.Name, loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// GetVault GET /api/vaults/{vaultId}
func (h *VaultHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(r.Context(), mux.Vars(r)["vaultId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, v)
}

// ListVaults GET /api/vaults
func (h *VaultHandler) ListVaults(w http.ResponseWriter, r *http.Request) {
	vts, err := h.svc.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"vaults": vts, "count": len(vts)})
}

// ListMyVaults GET /api/members/{memberId}/vaults
func (h *VaultHandler) ListMyVaults(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["memberId"]
	if memberID != requesterID(r) {
		respond.WriteForbidden(w, "members may only list their own vaults")
		return
	}
	vts, err := h.svc.VaultsOf(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"vaults": vts, "count": len(vts)})
}

// Nearby GET /api/vaults/nearby?lat=..&lng=..&radius=..&limit=..
func (h *VaultHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := validate.Latitude(q.Get("lat"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	lng, err := validate.Longitude(q.Get("lng"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	radius, err := validate.NonNegativeInt("radius", q.Get("radius"), 0)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := validate.NonNegativeInt("limit", q.Get("limit"), 0)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	vts, err := h.svc.Nearby(r.Context(), requesterID(r), model.LatLng{Latitude: lat, Longitude: lng}, float64(radius), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if vts == nil {
		vts = []*model.NearbyVault{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"vaults": vts, "count": len(vts)})
}

// DeleteVault DELETE /api/vaults/{vaultId}
func (h *VaultHandler) DeleteVault(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["vaultId"], requesterID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers GET /api/vaults/{vaultId}/members
func (h *VaultHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Members(r.Context(), mux.Vars(r)["vaultId"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"members": members, "count": len(members)})
}

// AddMember POST /api/vaults/{vaultId}/members
func (h *VaultHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"memberId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("memberId", req.MemberID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	m, err := h.svc.AddMember(r.Context(), mux.Vars(r)["vaultId"], req.MemberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, m)
}
