package api

import (
	"github.com/gorilla/mux"

	"github.com/dropspot/dropspot/internal/api/recovery"
	"github.com/dropspot/dropspot/internal/services"
	"github.com/dropspot/dropspot/internal/session"
)

// Deps carries everything the router needs.
type Deps struct {
	Vaults    *services.VaultService
	Invites   *services.InviteService
	Members   *services.MemberService
	Assets    *services.AssetService
	Sessions  session.Store
	IsHealthy func() bool
}

// NewRouter creates the HTTP router with all API routes. Everything except
// login and health sits behind the session middleware.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	authHandler := NewAuthHandler(d.Members, d.Sessions)
	memberHandler := NewMemberHandler(d.Members)
	vaultHandler := NewVaultHandler(d.Vaults)
	inviteHandler := NewInviteHandler(d.Invites)
	assetHandler := NewAssetHandler(d.Assets)
	healthHandler := NewHealthHandler(d.IsHealthy)

	// Public endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")

	// Session-scoped endpoints
	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(SessionMiddleware(d.Sessions))

	authed.HandleFunc("/auth/check", authHandler.Check).Methods("GET")
	authed.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")

	// Vaults. The nearby route registers before {vaultId} so "nearby" is not
	// taken for an id.
	authed.HandleFunc("/vaults/nearby", vaultHandler.Nearby).Methods("GET")
	authed.HandleFunc("/vaults", vaultHandler.CreateVault).Methods("POST")
	authed.HandleFunc("/vaults", vaultHandler.ListVaults).Methods("GET")
	authed.HandleFunc("/members", memberHandler.List).Methods("GET")
	authed.HandleFunc("/vaults/{vaultId}", vaultHandler.GetVault).Methods("GET")
	authed.HandleFunc("/vaults/{vaultId}", vaultHandler.DeleteVault).Methods("DELETE")
	authed.HandleFunc("/vaults/{vaultId}/members", vaultHandler.ListMembers).Methods("GET")
	authed.HandleFunc("/vaults/{vaultId}/members", vaultHandler.AddMember).Methods("POST")
	authed.HandleFunc("/members/{memberId}/vaults", vaultHandler.ListMyVaults).Methods("GET")

	// Invites
	authed.HandleFunc("/vaults/{vaultId}/invite", inviteHandler.Issue).Methods("GET")
	authed.HandleFunc("/invites/redeem", inviteHandler.Redeem).Methods("POST")

	// Assets
	authed.HandleFunc("/vaults/{vaultId}/assets", assetHandler.Create).Methods("POST")
	authed.HandleFunc("/vaults/{vaultId}/assets", assetHandler.List).Methods("GET")
	authed.HandleFunc("/vaults/{vaultId}/assets", assetHandler.PurgeVault).Methods("DELETE")
	authed.HandleFunc("/vaults/{vaultId}/assets/upload", assetHandler.Upload).Methods("POST")
	authed.HandleFunc("/assets/{assetId}", assetHandler.Delete).Methods("DELETE")
	authed.HandleFunc("/members/{memberId}/assets", assetHandler.PurgeMine).Methods("DELETE")

	return router
}
