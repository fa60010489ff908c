package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropspot/dropspot/internal/auth"
	"github.com/dropspot/dropspot/internal/crypto"
	"github.com/dropspot/dropspot/internal/services"
	"github.com/dropspot/dropspot/internal/session"
	"github.com/dropspot/dropspot/internal/store/sqlite"
)

const testSecret = "api-test-secret"

type testEnv struct {
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st, err := sqlite.New(db)
	require.NoError(t, err)

	redisSrv := miniredis.RunT(t)
	sessions := session.NewRedisStore(redisSrv.Addr(), "", time.Hour)

	verifier, err := auth.NewJWTVerifier(testSecret)
	require.NoError(t, err)

	keyHex, err := crypto.NewKeyHex()
	require.NoError(t, err)
	cipher, err := crypto.NewCipher(keyHex)
	require.NoError(t, err)

	blobs := newMemBlob()

	router := NewRouter(Deps{
		Vaults:    services.NewVaultService(st, blobs, 20, 5),
		Invites:   services.NewInviteService(st),
		Members:   services.NewMemberService(st, verifier),
		Assets:    services.NewAssetService(st, blobs, cipher),
		Sessions:  sessions,
		IsHealthy: func() bool { return true },
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv}
}

// memBlob is an in-memory blob.Store for transport tests.
type memBlob struct {
	objects map[string][]byte
}

func newMemBlob() *memBlob { return &memBlob{objects: map[string][]byte{}} }

func (b *memBlob) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return "", err
	}
	b.objects[key] = buf.Bytes()
	return "http://blob.test/drops/" + key, nil
}
func (b *memBlob) Remove(_ context.Context, key string) error {
	delete(b.objects, key)
	return nil
}
func (b *memBlob) Ping(context.Context) error { return nil }

func identityToken(t *testing.T, issuer string, issuedAt time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   issuer,
		"email": issuer + "@example.test",
		"iat":   issuedAt.Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, sessionToken string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	if sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+sessionToken)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

// login creates a member via the identity token flow and returns the session
// token and member id.
func (e *testEnv) login(t *testing.T, issuer string, issuedAt time.Time) (string, string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"token": identityToken(t, issuer, issuedAt),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login body: %v", body)
	member := body["member"].(map[string]interface{})
	return body["sessionToken"].(string), member["memberId"].(string)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	iat := time.Now().Add(-time.Minute)

	token, memberID := env.login(t, "did:test:alice", iat)
	assert.NotEmpty(t, memberID)

	resp, body := env.do(t, http.MethodGet, "/api/auth/check", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "did:test:alice", body["issuer"])

	// The same identity token replayed is rejected.
	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"token": identityToken(t, "did:test:alice", iat),
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A fresher token logs in again.
	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"token": identityToken(t, "did:test:alice", iat.Add(time.Second)),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Logout kills the session.
	resp, _ = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/auth/check", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// No token at all.
	resp, _ = env.do(t, http.MethodGet, "/api/auth/check", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// An empty identity token is a 400, not a 401.
	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"token": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDirectoryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	iat := time.Now().Add(-time.Minute)
	aliceTok, aliceID := env.login(t, "did:test:alice", iat)
	_, bobID := env.login(t, "did:test:bob", iat)

	_, vault := env.do(t, http.MethodPost, "/api/vaults", aliceTok, map[string]interface{}{
		"name": "directory-drop", "lat": 40.0, "lng": -70.0,
	})

	resp, body := env.do(t, http.MethodGet, "/api/vaults", aliceTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["count"], "body: %v", body)
	listed := body["vaults"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, vault["vaultId"], listed["vaultId"])

	resp, body = env.do(t, http.MethodGet, "/api/members", aliceTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["count"], "body: %v", body)
	var ids []string
	for _, m := range body["members"].([]interface{}) {
		ids = append(ids, m.(map[string]interface{})["memberId"].(string))
	}
	assert.Contains(t, ids, aliceID)
	assert.Contains(t, ids, bobID)

	// Both listings require a session.
	resp, _ = env.do(t, http.MethodGet, "/api/vaults", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/members", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVaultLifecycle(t *testing.T) {
	env := newTestEnv(t)
	iat := time.Now().Add(-time.Minute)
	creatorTok, creatorID := env.login(t, "did:test:creator", iat)
	otherTok, _ := env.login(t, "did:test:other", iat)

	resp, vault := env.do(t, http.MethodPost, "/api/vaults", creatorTok, map[string]interface{}{
		"name": "bridge-drop", "lat": 40.0, "lng": -70.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create body: %v", vault)
	vaultID := vault["vaultId"].(string)
	assert.Equal(t, creatorID, vault["creatorId"])
	assert.NotEmpty(t, vault["inviteKey"])

	// Missing location is a 400.
	resp, _ = env.do(t, http.MethodPost, "/api/vaults", creatorTok, map[string]interface{}{"name": "nowhere"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Creator's vault list includes it.
	resp, body := env.do(t, http.MethodGet, "/api/members/"+creatorID+"/vaults", creatorTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	// Non-creator cannot delete.
	resp, _ = env.do(t, http.MethodDelete, "/api/vaults/"+vaultID, otherTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Creator deletes; the vault is gone.
	resp, _ = env.do(t, http.MethodDelete, "/api/vaults/"+vaultID, creatorTok, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/vaults/"+vaultID, creatorTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNearbyVaults(t *testing.T) {
	env := newTestEnv(t)
	iat := time.Now().Add(-time.Minute)
	tok, _ := env.login(t, "did:test:walker", iat)

	_, v1 := env.do(t, http.MethodPost, "/api/vaults", tok, map[string]interface{}{
		"name": "vault-one", "lat": 40.0, "lng": -70.0,
	})
	_, v2 := env.do(t, http.MethodPost, "/api/vaults", tok, map[string]interface{}{
		"name": "vault-two", "lat": 40.001, "lng": -70.001,
	})

	resp, body := env.do(t, http.MethodGet, "/api/vaults/nearby?lat=40.0&lng=-70.0&radius=1000", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["count"], "body: %v", body)
	vaults := body["vaults"].([]interface{})
	first := vaults[0].(map[string]interface{})
	second := vaults[1].(map[string]interface{})
	assert.Equal(t, v1["vaultId"], first["vaultId"])
	assert.Equal(t, v2["vaultId"], second["vaultId"])
	assert.Less(t, first["distanceMeters"].(float64), second["distanceMeters"].(float64))

	// Default radius (20m) sees only the vault at the position.
	resp, body = env.do(t, http.MethodGet, "/api/vaults/nearby?lat=40.0&lng=-70.0", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	// Out of range coordinates are a 400.
	resp, _ = env.do(t, http.MethodGet, "/api/vaults/nearby?lat=91&lng=0", tok, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInviteFlow(t *testing.T) {
	env := newTestEnv(t)
	iat := time.Now().Add(-time.Minute)
	creatorTok, _ := env.login(t, "did:test:host", iat)
	joinerTok, joinerID := env.login(t, "did:test:joiner", iat)
	lateTok, _ := env.login(t, "did:test:late", iat)

	_, vault := env.do(t, http.MethodPost, "/api/vaults", creatorTok, map[string]interface{}{
		"name": "invite-drop", "lat": 40.0, "lng": -70.0,
	})
	vaultID := vault["vaultId"].(string)
	inviteKey := vault["inviteKey"].(string)

	// A member gets a QR; a non-member does not.
	resp, body := env.do(t, http.MethodGet, "/api/vaults/"+vaultID+"/invite", creatorTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["qr"], "data:image/png;base64,")
	resp, _ = env.do(t, http.MethodGet, "/api/vaults/"+vaultID+"/invite", joinerTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	payload := fmt.Sprintf("id=%s&key=%s", vaultID, inviteKey)
	resp, redeemed := env.do(t, http.MethodPost, "/api/invites/redeem", joinerTok, map[string]string{"payload": payload})
	require.Equal(t, http.StatusOK, resp.StatusCode, "redeem body: %v", redeemed)
	assert.NotEqual(t, inviteKey, redeemed["inviteKey"], "key must rotate on redeem")

	// The joiner now appears in the member list.
	resp, body = env.do(t, http.MethodGet, "/api/vaults/"+vaultID+"/members", joinerTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])
	_ = joinerID

	// An empty payload never reaches the service.
	resp, _ = env.do(t, http.MethodPost, "/api/invites/redeem", lateTok, map[string]string{"payload": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The consumed key is dead.
	resp, _ = env.do(t, http.MethodPost, "/api/invites/redeem", lateTok, map[string]string{"payload": payload})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Redeeming as an existing member is a conflict and does not rotate.
	fresh := redeemed["inviteKey"].(string)
	resp, _ = env.do(t, http.MethodPost, "/api/invites/redeem", joinerTok, map[string]string{
		"payload": fmt.Sprintf("id=%s&key=%s", vaultID, fresh),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, body = env.do(t, http.MethodGet, "/api/vaults/"+vaultID, joinerTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fresh, body["inviteKey"])
}

func TestAssetEndpoints(t *testing.T) {
	env := newTestEnv(t)
	iat := time.Now().Add(-time.Minute)
	memberTok, memberID := env.login(t, "did:test:uploader", iat)
	outsiderTok, _ := env.login(t, "did:test:outsider", iat)

	_, vault := env.do(t, http.MethodPost, "/api/vaults", memberTok, map[string]interface{}{
		"name": "asset-drop", "lat": 40.0, "lng": -70.0,
	})
	vaultID := vault["vaultId"].(string)

	resp, asset := env.do(t, http.MethodPost, "/api/vaults/"+vaultID+"/assets", memberTok, map[string]string{
		"type": "note", "content": "look behind the oak",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create body: %v", asset)
	assetID := asset["assetId"].(string)

	// Members see decrypted content; outsiders see nothing.
	resp, body := env.do(t, http.MethodGet, "/api/vaults/"+vaultID+"/assets", memberTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["count"])
	resp, _ = env.do(t, http.MethodGet, "/api/vaults/"+vaultID+"/assets", outsiderTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Outsider cannot delete the asset either.
	resp, _ = env.do(t, http.MethodDelete, "/api/assets/"+assetID, outsiderTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Purge own uploads.
	resp, _ = env.do(t, http.MethodDelete, "/api/members/"+memberID+"/assets", memberTok, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, body = env.do(t, http.MethodGet, "/api/vaults/"+vaultID+"/assets", memberTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["count"])
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}
