package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"github.com/dropspot/dropspot/internal/blob"
	"github.com/dropspot/dropspot/internal/crypto"
	"github.com/dropspot/dropspot/internal/model"
	"github.com/dropspot/dropspot/internal/store"
)

// AssetService manages vault contents. Payloads are encrypted at rest with
// the payload cipher; file uploads additionally land in blob storage and the
// stored payload is the encrypted {key,url} pointer.
type AssetService struct {
	store  store.Store
	blobs  blob.Store
	cipher *crypto.Cipher
}

func NewAssetService(s store.Store, b blob.Store, c *crypto.Cipher) *AssetService {
	return &AssetService{store: s, blobs: b, cipher: c}
}

// uploadPointer is the plaintext form of an uploaded asset's payload.
type uploadPointer struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (s *AssetService) requireMember(ctx context.Context, vaultID, memberID string) error {
	ok, err := s.store.Memberships().Exists(ctx, vaultID, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("member %s does not belong to vault %s: %w", memberID, vaultID, model.ErrForbidden)
	}
	return nil
}

// Create stores an inline asset (text note, coordinates, small blobs).
func (s *AssetService) Create(ctx context.Context, vaultID, uploaderID, assetType string, content []byte) (*model.Asset, error) {
	if assetType == "" || len(content) == 0 {
		return nil, fmt.Errorf("asset type and content are required: %w", model.ErrInvalidInput)
	}
	if err := s.requireMember(ctx, vaultID, uploaderID); err != nil {
		return nil, err
	}
	sealed, err := s.cipher.Seal(content)
	if err != nil {
		return nil, err
	}
	return s.store.Assets().Create(ctx, &model.Asset{
		AssetID:    uuid.NewString(),
		VaultID:    vaultID,
		UploaderID: uploaderID,
		Type:       assetType,
		Payload:    sealed,
	})
}

// Upload streams a file into blob storage and records an asset whose payload
// is the encrypted storage pointer.
func (s *AssetService) Upload(ctx context.Context, vaultID, uploaderID, filename, contentType string, r io.Reader, size int64) (*model.Asset, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is required: %w", model.ErrInvalidInput)
	}
	if err := s.requireMember(ctx, vaultID, uploaderID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("vaults/%s/%s-%s", vaultID, uuid.NewString(), path.Base(filename))
	url, err := s.blobs.Put(ctx, key, r, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	plaintext, err := json.Marshal(uploadPointer{Key: key, URL: url})
	if err != nil {
		return nil, err
	}
	sealed, err := s.cipher.Seal(plaintext)
	if err != nil {
		return nil, err
	}

	a, err := s.store.Assets().Create(ctx, &model.Asset{
		AssetID:    uuid.NewString(),
		VaultID:    vaultID,
		UploaderID: uploaderID,
		Type:       "file",
		Payload:    sealed,
		StorageKey: &key,
	})
	if err != nil {
		// The blob is orphaned if the row fails; best effort cleanup.
		_ = s.blobs.Remove(ctx, key)
		return nil, err
	}
	return a, nil
}

// ListByVault returns a page of the vault's assets with payloads decrypted.
func (s *AssetService) ListByVault(ctx context.Context, vaultID, requesterID string, offset, limit int) ([]*model.Asset, error) {
	if err := s.requireMember(ctx, vaultID, requesterID); err != nil {
		return nil, err
	}
	assets, err := s.store.Assets().ListByVault(ctx, vaultID, offset, limit)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		plain, err := s.cipher.Open(a.Payload)
		if err != nil {
			return nil, fmt.Errorf("decrypt asset %s: %w", a.AssetID, err)
		}
		a.Payload = plain
	}
	return assets, nil
}

// Delete removes one asset. The uploader or the vault creator may delete it.
func (s *AssetService) Delete(ctx context.Context, assetID, requesterID string) error {
	a, err := s.store.Assets().GetByID(ctx, assetID)
	if err != nil {
		return err
	}
	if a.UploaderID != requesterID {
		v, err := s.store.Vaults().GetByID(ctx, a.VaultID)
		if err != nil {
			return err
		}
		if v.CreatorID != requesterID {
			return fmt.Errorf("member %s may not delete asset %s: %w", requesterID, assetID, model.ErrForbidden)
		}
	}
	if a.StorageKey != nil {
		if err := s.blobs.Remove(ctx, *a.StorageKey); err != nil {
			return fmt.Errorf("remove blob %s: %v: %w", *a.StorageKey, err, model.ErrDeletionFailed)
		}
	}
	return s.store.Assets().Delete(ctx, assetID)
}

// PurgeVault removes every asset in a vault. Creator only.
func (s *AssetService) PurgeVault(ctx context.Context, vaultID, requesterID string) error {
	v, err := s.store.Vaults().GetByID(ctx, vaultID)
	if err != nil {
		return err
	}
	if v.CreatorID != requesterID {
		return fmt.Errorf("only the creator may purge vault %s: %w", vaultID, model.ErrForbidden)
	}
	keys, err := s.store.Assets().StorageKeysByVault(ctx, vaultID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.blobs.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove blob %s: %v: %w", key, err, model.ErrDeletionFailed)
		}
	}
	return s.store.Assets().DeleteByVault(ctx, vaultID)
}

// PurgeUploader removes every asset a member uploaded, across vaults.
// Members may only purge their own uploads.
func (s *AssetService) PurgeUploader(ctx context.Context, memberID, requesterID string) error {
	if memberID != requesterID {
		return fmt.Errorf("member %s may not purge uploads of %s: %w", requesterID, memberID, model.ErrForbidden)
	}
	keys, err := s.store.Assets().StorageKeysByUploader(ctx, memberID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.blobs.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove blob %s: %v: %w", key, err, model.ErrDeletionFailed)
		}
	}
	return s.store.Assets().DeleteByUploader(ctx, memberID)
}
