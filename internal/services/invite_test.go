package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dropspot/dropspot/internal/invite"
	"github.com/dropspot/dropspot/internal/model"
)

func inviteFixture() *fakeStore {
	f := newFakeStore()
	f.addMember(&model.Member{MemberID: "creator-1"})
	f.addMember(&model.Member{MemberID: "joiner-1"})
	f.addMember(&model.Member{MemberID: "outsider-1"})
	f.addVault(&model.Vault{VaultID: "v1", InviteKey: "key-1", Name: "drop", CreatorID: "creator-1"})
	f.addMembership("v1", "creator-1")
	return f
}

func TestInviteServiceIssue(t *testing.T) {
	ctx := context.Background()
	f := inviteFixture()
	svc := NewInviteService(f)

	t.Run("member gets a qr data url", func(t *testing.T) {
		url, err := svc.Issue(ctx, "v1", "creator-1")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if !strings.HasPrefix(url, "data:image/png;base64,") {
			t.Fatalf("unexpected url prefix: %.40s", url)
		}
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		if _, err := svc.Issue(ctx, "v1", "outsider-1"); !errors.Is(err, model.ErrForbidden) {
			t.Fatalf("outsider issue: err=%v", err)
		}
	})

	t.Run("missing vault", func(t *testing.T) {
		if _, err := svc.Issue(ctx, "ghost", "creator-1"); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("missing vault: err=%v", err)
		}
	})
}

func TestInviteServiceRedeem(t *testing.T) {
	ctx := context.Background()

	payload := func(f *fakeStore) string {
		return invite.Invite{VaultID: "v1", InviteKey: f.vaults["v1"].InviteKey}.Payload()
	}

	t.Run("valid invite joins and rotates", func(t *testing.T) {
		f := inviteFixture()
		svc := NewInviteService(f)

		v, err := svc.Redeem(ctx, payload(f), "joiner-1")
		if err != nil {
			t.Fatalf("Redeem: %v", err)
		}
		if !f.memberships["v1|joiner-1"] {
			t.Fatal("membership missing after redeem")
		}
		if v.InviteKey == "key-1" {
			t.Fatal("invite key not rotated")
		}
	})

	t.Run("stale key is invalid", func(t *testing.T) {
		f := inviteFixture()
		svc := NewInviteService(f)

		stale := payload(f)
		if _, err := svc.Redeem(ctx, stale, "joiner-1"); err != nil {
			t.Fatalf("first redeem: %v", err)
		}
		if _, err := svc.Redeem(ctx, stale, "outsider-1"); !errors.Is(err, model.ErrInvalidInvite) {
			t.Fatalf("stale redeem: err=%v", err)
		}
	})

	t.Run("malformed payload is invalid", func(t *testing.T) {
		f := inviteFixture()
		svc := NewInviteService(f)

		if _, err := svc.Redeem(ctx, "id=only", "joiner-1"); !errors.Is(err, model.ErrInvalidInvite) {
			t.Fatalf("malformed payload: err=%v", err)
		}
	})

	t.Run("existing member does not rotate", func(t *testing.T) {
		f := inviteFixture()
		svc := NewInviteService(f)

		if _, err := svc.Redeem(ctx, payload(f), "creator-1"); !errors.Is(err, model.ErrAlreadyMember) {
			t.Fatalf("existing member redeem: err=%v", err)
		}
		if f.vaults["v1"].InviteKey != "key-1" {
			t.Fatal("invite key rotated on failed redeem")
		}
	})
}
