package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dropspot/dropspot/internal/invite"
	"github.com/dropspot/dropspot/internal/model"
	"github.com/dropspot/dropspot/internal/store"
)

// InviteService issues invite QR codes and redeems scanned invites. Every
// successful redemption rotates the vault's invite key, so a QR is single-use.
type InviteService struct {
	store store.Store
}

func NewInviteService(s store.Store) *InviteService {
	return &InviteService{store: s}
}

// Issue renders the vault's current invite as a QR data URL. Only members of
// the vault can issue invites for it.
func (s *InviteService) Issue(ctx context.Context, vaultID, requesterID string) (string, error) {
	v, err := s.store.Vaults().GetByID(ctx, vaultID)
	if err != nil {
		return "", err
	}
	ok, err := s.store.Memberships().Exists(ctx, vaultID, requesterID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("member %s does not belong to vault %s: %w", requesterID, vaultID, model.ErrForbidden)
	}
	return invite.EncodeDataURL(invite.Invite{VaultID: v.VaultID, InviteKey: v.InviteKey})
}

// Redeem joins the member to the vault named in the scanned payload and
// rotates the invite key. The returned vault carries the fresh key.
func (s *InviteService) Redeem(ctx context.Context, payload, memberID string) (*model.Vault, error) {
	in, err := invite.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrInvalidInvite)
	}
	if err := s.store.Vaults().RedeemInvite(ctx, in.VaultID, in.InviteKey, memberID, uuid.NewString()); err != nil {
		return nil, err
	}
	return s.store.Vaults().GetByID(ctx, in.VaultID)
}
