package services

import (
	"context"
	"fmt"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"

	"github.com/dropspot/dropspot/internal/blob"
	"github.com/dropspot/dropspot/internal/model"
	"github.com/dropspot/dropspot/internal/store"
)

// VaultService owns the vault lifecycle: creation with the creator's
// membership, nearby lookup, membership listing and creator-only deletion.
type VaultService struct {
	store         store.Store
	blobs         blob.Store
	defaultRadius float64
	defaultLimit  int
}

func NewVaultService(s store.Store, b blob.Store, defaultRadiusMeters float64, defaultLimit int) *VaultService {
	return &VaultService{store: s, blobs: b, defaultRadius: defaultRadiusMeters, defaultLimit: defaultLimit}
}

func validLatLng(p model.LatLng) bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Create drops a new vault at the given location. The name is generated when
// omitted. The creator becomes the first member atomically with the vault row.
func (s *VaultService) Create(ctx context.Context, creatorID, name string, location *model.LatLng) (*model.Vault, error) {
	if creatorID == "" {
		return nil, fmt.Errorf("creator id is required: %w", model.ErrInvalidInput)
	}
	if location == nil || !validLatLng(*location) {
		return nil, fmt.Errorf("vault location is required: %w", model.ErrInvalidInput)
	}
	if name == "" {
		name = petname.Generate(2, "-")
	}
	v, err := s.store.Vaults().Create(ctx, &model.Vault{
		VaultID:   uuid.NewString(),
		InviteKey: uuid.NewString(),
		Name:      name,
		Location:  *location,
		CreatorID: creatorID,
	})
	if err != nil {
		return nil, fmt.Errorf("create vault: %v: %w", err, model.ErrCreationFailed)
	}
	return v, nil
}

func (s *VaultService) Get(ctx context.Context, vaultID string) (*model.Vault, error) {
	return s.store.Vaults().GetByID(ctx, vaultID)
}

func (s *VaultService) List(ctx context.Context) ([]*model.Vault, error) {
	return s.store.Vaults().List(ctx)
}

func (s *VaultService) VaultsOf(ctx context.Context, memberID string) ([]*model.Vault, error) {
	return s.store.Vaults().ListByMember(ctx, memberID)
}

// Nearby returns the requester's vaults around p, nearest first. Zero radius
// or limit fall back to the configured defaults.
func (s *VaultService) Nearby(ctx context.Context, memberID string, p model.LatLng, radiusMeters float64, limit int) ([]*model.NearbyVault, error) {
	if !validLatLng(p) {
		return nil, fmt.Errorf("position out of range: %w", model.ErrInvalidInput)
	}
	if radiusMeters <= 0 {
		radiusMeters = s.defaultRadius
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	return s.store.Vaults().Nearby(ctx, memberID, p, radiusMeters, limit)
}

func (s *VaultService) AddMember(ctx context.Context, vaultID, memberID string) (*model.Membership, error) {
	return s.store.Memberships().Add(ctx, vaultID, memberID)
}

func (s *VaultService) Members(ctx context.Context, vaultID string) ([]*model.Member, error) {
	if _, err := s.store.Vaults().GetByID(ctx, vaultID); err != nil {
		return nil, err
	}
	return s.store.Members().ListByVault(ctx, vaultID)
}

// Delete removes a vault. Only the creator may delete. Uploaded blobs are
// removed first so storage delete cannot leave them unreachable for listing.
func (s *VaultService) Delete(ctx context.Context, vaultID, requesterID string) error {
	v, err := s.store.Vaults().GetByID(ctx, vaultID)
	if err != nil {
		return err
	}
	if v.CreatorID != requesterID {
		return fmt.Errorf("only the creator may delete vault %s: %w", vaultID, model.ErrForbidden)
	}

	if s.blobs != nil {
		keys, err := s.store.Assets().StorageKeysByVault(ctx, vaultID)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := s.blobs.Remove(ctx, key); err != nil {
				return fmt.Errorf("remove blob %s: %v: %w", key, err, model.ErrDeletionFailed)
			}
		}
	}

	if err := s.store.Vaults().Delete(ctx, vaultID); err != nil {
		return fmt.Errorf("delete vault %s: %v: %w", vaultID, err, model.ErrDeletionFailed)
	}
	return nil
}
