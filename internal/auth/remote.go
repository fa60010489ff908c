package auth

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// RemoteVerifier resolves identity tokens through the identity provider's
// admin API. The provider exposes a metadata endpoint keyed by the bearer
// token.
type RemoteVerifier struct {
	http *resty.Client
}

func NewRemoteVerifier(baseURL string) (*RemoteVerifier, error) {
	if baseURL == "" {
		return nil, errors.New("identity provider url must not be empty")
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)
	return &RemoteVerifier{http: c}, nil
}

type remoteMetadata struct {
	Issuer   string `json:"issuer"`
	Email    string `json:"email"`
	IssuedAt int64  `json:"issued_at"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	var meta remoteMetadata
	resp, err := v.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&meta).
		Get("/v1/admin/metadata")
	if err != nil {
		return Identity{}, errors.Wrap(err, "identity provider unreachable")
	}
	if resp.IsError() {
		return Identity{}, errors.Errorf("identity provider rejected token: status %d", resp.StatusCode())
	}
	if meta.Issuer == "" {
		return Identity{}, errors.New("identity provider returned no issuer")
	}
	return Identity{Issuer: meta.Issuer, Email: meta.Email, IssuedAt: meta.IssuedAt}, nil
}
