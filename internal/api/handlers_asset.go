package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/dropspot/dropspot/internal/api/respond"
	"github.com/dropspot/dropspot/internal/api/validate"
	"github.com/dropspot/dropspot/internal/services"
)

// maxUploadBytes caps multipart uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// AssetHandler manages vault contents over HTTP.
type AssetHandler struct {
	svc *services.AssetService
}

func NewAssetHandler(svc *services.AssetService) *AssetHandler { return &AssetHandler{svc: svc} }

// Create POST /api/vaults/{vaultId}/assets
func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	a, err := h.svc.Create(r.Context(), mux.Vars(r)["vaultId"], requesterID(r), req.Type, []byte(req.Content))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, a)
}

// Upload POST /api/vaults/{vaultId}/assets/upload (multipart, field "file")
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respond.WriteBadRequest(w, "multipart field 'file' is required")
		return
	}
	defer func() { _ = file.Close() }()

	a, err := h.svc.Upload(r.Context(), mux.Vars(r)["vaultId"], requesterID(r),
		header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, a)
}

// List GET /api/vaults/{vaultId}/assets?offset=..&limit=..
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := validate.NonNegativeInt("offset", q.Get("offset"), 0)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := validate.NonNegativeInt("limit", q.Get("limit"), 0)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	assets, err := h.svc.ListByVault(r.Context(), mux.Vars(r)["vaultId"], requesterID(r), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"assets": assets, "count": len(assets)})
}

// Delete DELETE /api/assets/{assetId}
func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["assetId"], requesterID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurgeVault DELETE /api/vaults/{vaultId}/assets
func (h *AssetHandler) PurgeVault(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.PurgeVault(r.Context(), mux.Vars(r)["vaultId"], requesterID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurgeMine DELETE /api/members/{memberId}/assets
func (h *AssetHandler) PurgeMine(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.PurgeUploader(r.Context(), mux.Vars(r)["memberId"], requesterID(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
