package store

import (
	"context"

	"github.com/dropspot/dropspot/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
//
// Operations that must be atomic across rows (vault creation with its
// creator membership, cascading vault deletion, invite redemption with key
// rotation) are single interface methods so each adapter can run them in one
// transaction with the isolation it needs.
type Store interface {
	Members() Members
	Vaults() Vaults
	Memberships() Memberships
	Assets() Assets

	// Ping reports storage reachability for health checks.
	Ping(ctx context.Context) error
}

type Members interface {
	// Create fails with model.ErrAccountExists when a member with the same
	// issuer or email already exists.
	Create(ctx context.Context, m *model.Member) (*model.Member, error)
	GetByID(ctx context.Context, memberID string) (*model.Member, error)
	GetByIssuer(ctx context.Context, issuer string) (*model.Member, error)
	// RecordLogin advances last_login_at to issuedAt. It fails with
	// model.ErrReplayDetected unless issuedAt is strictly greater than the
	// stored value; the comparison and the write are one atomic statement.
	RecordLogin(ctx context.Context, issuer string, issuedAt int64) error
	List(ctx context.Context) ([]*model.Member, error)
	ListByVault(ctx context.Context, vaultID string) ([]*model.Member, error)
}

type Vaults interface {
	// Create inserts the vault row and the creator's membership row in one
	// transaction; neither persists if either write fails.
	Create(ctx context.Context, v *model.Vault) (*model.Vault, error)
	GetByID(ctx context.Context, vaultID string) (*model.Vault, error)
	List(ctx context.Context) ([]*model.Vault, error)
	ListByMember(ctx context.Context, memberID string) ([]*model.Vault, error)
	// Nearby returns up to limit vaults the member belongs to within
	// radiusMeters of p, nearest first, ties broken by vault id ascending.
	// A vault exactly at the radius is included. An empty result is not an
	// error.
	Nearby(ctx context.Context, memberID string, p model.LatLng, radiusMeters float64, limit int) ([]*model.NearbyVault, error)
	// RedeemInvite validates presentedKey against the vault's current invite
	// key, inserts the membership and rotates the key to newKey, all inside
	// one serializable unit scoped to the vault row. Under concurrent
	// redemptions of the same stale key exactly one call succeeds; the rest
	// observe the rotated key and fail with model.ErrInvalidInvite. A
	// duplicate membership fails with model.ErrAlreadyMember and does not
	// rotate the key.
	RedeemInvite(ctx context.Context, vaultID, presentedKey, memberID, newKey string) error
	// Delete removes the vault's assets, memberships and the vault row in
	// one transaction, in that order.
	Delete(ctx context.Context, vaultID string) error
}

type Memberships interface {
	// Add fails with model.ErrAlreadyMember when the pair exists and with
	// model.ErrNotFound when the vault or member does not. Uniqueness is
	// enforced by the storage layer, not by check-then-insert.
	Add(ctx context.Context, vaultID, memberID string) (*model.Membership, error)
	Exists(ctx context.Context, vaultID, memberID string) (bool, error)
}

type Assets interface {
	Create(ctx context.Context, a *model.Asset) (*model.Asset, error)
	GetByID(ctx context.Context, assetID string) (*model.Asset, error)
	ListByVault(ctx context.Context, vaultID string, offset, limit int) ([]*model.Asset, error)
	Delete(ctx context.Context, assetID string) error
	DeleteByVault(ctx context.Context, vaultID string) error
	DeleteByUploader(ctx context.Context, memberID string) error
	// StorageKeysByVault / StorageKeysByUploader list the blob storage keys
	// of uploaded assets so callers can remove the blobs around a cascade.
	StorageKeysByVault(ctx context.Context, vaultID string) ([]string, error)
	StorageKeysByUploader(ctx context.Context, memberID string) ([]string, error)
}
