// Package storetest holds a compliance suite run against every store.Store
// implementation. Adapters provide a clean store via makeStore and get the
// same behavioral checks: invite single-use under concurrency, membership
// uniqueness, nearby ordering, atomic creation and cascading deletion, and
// the login replay guard.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/dropspot/dropspot/internal/model"
	"github.com/dropspot/dropspot/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	newMember := func(t *testing.T) *model.Member {
		t.Helper()
		id := uuid.NewString()
		m, err := s.Members().Create(ctx, &model.Member{
			MemberID:    id,
			Issuer:      "did:test:" + id,
			Email:       id + "@example.test",
			LastLoginAt: 1000,
		})
		if err != nil {
			t.Fatalf("CreateMember: %v", err)
		}
		return m
	}

	newVault := func(t *testing.T, creator *model.Member, loc model.LatLng) *model.Vault {
		t.Helper()
		v, err := s.Vaults().Create(ctx, &model.Vault{
			VaultID:   uuid.NewString(),
			InviteKey: uuid.NewString(),
			Name:      "suite-vault",
			Location:  loc,
			CreatorID: creator.MemberID,
		})
		if err != nil {
			t.Fatalf("CreateVault: %v", err)
		}
		return v
	}

	t.Run("MemberRoundTrip", func(t *testing.T) {
		m := newMember(t)
		got, err := s.Members().GetByID(ctx, m.MemberID)
		if err != nil || got.Issuer != m.Issuer {
			t.Fatalf("GetByID: got=%v err=%v", got, err)
		}
		got, err = s.Members().GetByIssuer(ctx, m.Issuer)
		if err != nil || got.MemberID != m.MemberID {
			t.Fatalf("GetByIssuer: got=%v err=%v", got, err)
		}
		if _, err := s.Members().GetByID(ctx, uuid.NewString()); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("GetByID missing: err=%v", err)
		}
	})

	t.Run("DuplicateIssuerRejected", func(t *testing.T) {
		m := newMember(t)
		_, err := s.Members().Create(ctx, &model.Member{
			MemberID:    uuid.NewString(),
			Issuer:      m.Issuer,
			Email:       uuid.NewString() + "@example.test",
			LastLoginAt: 1000,
		})
		if !errors.Is(err, model.ErrAccountExists) {
			t.Fatalf("duplicate issuer: err=%v", err)
		}
	})

	t.Run("VaultCreationIsAtomic", func(t *testing.T) {
		// A nonexistent creator fails the membership insert; the vault row
		// written earlier in the transaction must not survive.
		vaultID := uuid.NewString()
		_, err := s.Vaults().Create(ctx, &model.Vault{
			VaultID:   vaultID,
			InviteKey: uuid.NewString(),
			Name:      "orphan",
			Location:  model.LatLng{Latitude: 1, Longitude: 1},
			CreatorID: uuid.NewString(),
		})
		if !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("Create with unknown creator: err=%v", err)
		}
		if _, err := s.Vaults().GetByID(ctx, vaultID); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("vault row persisted after failed create: err=%v", err)
		}
	})

	t.Run("CreatorIsMember", func(t *testing.T) {
		creator := newMember(t)
		v := newVault(t, creator, model.LatLng{Latitude: 10, Longitude: 10})
		ok, err := s.Memberships().Exists(ctx, v.VaultID, creator.MemberID)
		if err != nil || !ok {
			t.Fatalf("creator membership: ok=%v err=%v", ok, err)
		}
	})

	t.Run("MembershipUniqueness", func(t *testing.T) {
		creator := newMember(t)
		other := newMember(t)
		v := newVault(t, creator, model.LatLng{Latitude: 10, Longitude: 10})

		if _, err := s.Memberships().Add(ctx, v.VaultID, other.MemberID); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if _, err := s.Memberships().Add(ctx, v.VaultID, other.MemberID); !errors.Is(err, model.ErrAlreadyMember) {
			t.Fatalf("duplicate Add: err=%v", err)
		}
		if _, err := s.Memberships().Add(ctx, uuid.NewString(), other.MemberID); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("Add to missing vault: err=%v", err)
		}
		members, err := s.Members().ListByVault(ctx, v.VaultID)
		if err != nil || len(members) != 2 {
			t.Fatalf("ListByVault: n=%d err=%v", len(members), err)
		}
	})

	t.Run("RedeemInviteRotatesKey", func(t *testing.T) {
		creator := newMember(t)
		joiner := newMember(t)
		v := newVault(t, creator, model.LatLng{Latitude: 10, Longitude: 10})

		newKey := uuid.NewString()
		if err := s.Vaults().RedeemInvite(ctx, v.VaultID, v.InviteKey, joiner.MemberID, newKey); err != nil {
			t.Fatalf("RedeemInvite: %v", err)
		}
		got, err := s.Vaults().GetByID(ctx, v.VaultID)
		if err != nil || got.InviteKey != newKey {
			t.Fatalf("key after redeem: got=%v err=%v", got, err)
		}
		ok, err := s.Memberships().Exists(ctx, v.VaultID, joiner.MemberID)
		if err != nil || !ok {
			t.Fatalf("membership after redeem: ok=%v err=%v", ok, err)
		}

		// The consumed key is dead for later joiners.
		late := newMember(t)
		if err := s.Vaults().RedeemInvite(ctx, v.VaultID, v.InviteKey, late.MemberID, uuid.NewString()); !errors.Is(err, model.ErrInvalidInvite) {
			t.Fatalf("stale key redeem: err=%v", err)
		}
	})

	t.Run("RedeemInviteExistingMemberDoesNotRotate", func(t *testing.T) {
		creator := newMember(t)
		v := newVault(t, creator, model.LatLng{Latitude: 10, Longitude: 10})

		err := s.Vaults().RedeemInvite(ctx, v.VaultID, v.InviteKey, creator.MemberID, uuid.NewString())
		if !errors.Is(err, model.ErrAlreadyMember) {
			t.Fatalf("redeem as existing member: err=%v", err)
		}
		got, err := s.Vaults().GetByID(ctx, v.VaultID)
		if err != nil || got.InviteKey != v.InviteKey {
			t.Fatalf("key rotated on failed redeem: got=%v err=%v", got, err)
		}
	})

	t.Run("RedeemInviteSingleWinnerUnderConcurrency", func(t *testing.T) {
		const contenders = 8

		creator := newMember(t)
		v := newVault(t, creator, model.LatLng{Latitude: 10, Longitude: 10})

		joiners := make([]*model.Member, contenders)
		for i := range joiners {
			joiners[i] = newMember(t)
		}

		errs := make([]error, contenders)
		var wg sync.WaitGroup
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Vaults().RedeemInvite(ctx, v.VaultID, v.InviteKey, joiners[i].MemberID, uuid.NewString())
			}(i)
		}
		wg.Wait()

		var won, lost int
		for i, err := range errs {
			switch {
			case err == nil:
				won++
			case errors.Is(err, model.ErrInvalidInvite):
				lost++
			default:
				t.Fatalf("contender %d: unexpected err=%v", i, err)
			}
		}
		if won != 1 || lost != contenders-1 {
			t.Fatalf("winners=%d losers=%d", won, lost)
		}
	})

	t.Run("NearbyOrderingAndBoundary", func(t *testing.T) {
		here := model.LatLng{Latitude: 40.0, Longitude: -70.0}
		m := newMember(t)
		near := newVault(t, m, here)
		far := newVault(t, m, model.LatLng{Latitude: 40.001, Longitude: -70.001})
		// Member of this one too, but outside any radius used below.
		newVault(t, m, model.LatLng{Latitude: 41.0, Longitude: -70.0})
		// Within range but not a member; must never appear.
		stranger := newMember(t)
		newVault(t, stranger, here)

		got, err := s.Vaults().Nearby(ctx, m.MemberID, here, 1000, 5)
		if err != nil {
			t.Fatalf("Nearby: %v", err)
		}
		if len(got) != 2 || got[0].VaultID != near.VaultID || got[1].VaultID != far.VaultID {
			t.Fatalf("Nearby order: got=%v", ids(got))
		}
		if got[0].DistanceMeters > got[1].DistanceMeters {
			t.Fatalf("distances not ascending: %v %v", got[0].DistanceMeters, got[1].DistanceMeters)
		}

		// Radius equal to the far vault's distance keeps it in the result.
		exact, err := s.Vaults().Nearby(ctx, m.MemberID, here, got[1].DistanceMeters, 5)
		if err != nil || len(exact) != 2 {
			t.Fatalf("Nearby inclusive boundary: n=%d err=%v", len(exact), err)
		}

		// Limit caps the result at the nearest vaults.
		one, err := s.Vaults().Nearby(ctx, m.MemberID, here, 1000, 1)
		if err != nil || len(one) != 1 || one[0].VaultID != near.VaultID {
			t.Fatalf("Nearby limit: got=%v err=%v", ids(one), err)
		}

		// Tight radius excludes everything; empty is not an error.
		none, err := s.Vaults().Nearby(ctx, m.MemberID, model.LatLng{Latitude: -40, Longitude: 100}, 20, 5)
		if err != nil || len(none) != 0 {
			t.Fatalf("Nearby empty: n=%d err=%v", len(none), err)
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		creator := newMember(t)
		other := newMember(t)
		v := newVault(t, creator, model.LatLng{Latitude: 10, Longitude: 10})
		if _, err := s.Memberships().Add(ctx, v.VaultID, other.MemberID); err != nil {
			t.Fatalf("Add: %v", err)
		}
		for i := 0; i < 3; i++ {
			key := fmt.Sprintf("blobs/%s/%d", v.VaultID, i)
			if _, err := s.Assets().Create(ctx, &model.Asset{
				AssetID:    uuid.NewString(),
				VaultID:    v.VaultID,
				UploaderID: creator.MemberID,
				Type:       "note",
				Payload:    []byte("cipher"),
				StorageKey: &key,
			}); err != nil {
				t.Fatalf("CreateAsset %d: %v", i, err)
			}
		}

		keys, err := s.Assets().StorageKeysByVault(ctx, v.VaultID)
		if err != nil || len(keys) != 3 {
			t.Fatalf("StorageKeysByVault: n=%d err=%v", len(keys), err)
		}

		if err := s.Vaults().Delete(ctx, v.VaultID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Vaults().GetByID(ctx, v.VaultID); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("vault after delete: err=%v", err)
		}
		if as, err := s.Assets().ListByVault(ctx, v.VaultID, 0, 0); err != nil || len(as) != 0 {
			t.Fatalf("assets after delete: n=%d err=%v", len(as), err)
		}
		if ok, err := s.Memberships().Exists(ctx, v.VaultID, other.MemberID); err != nil || ok {
			t.Fatalf("membership after delete: ok=%v err=%v", ok, err)
		}
		if err := s.Vaults().Delete(ctx, v.VaultID); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("double delete: err=%v", err)
		}
	})

	t.Run("AssetPagingAndPurges", func(t *testing.T) {
		creator := newMember(t)
		uploader := newMember(t)
		v := newVault(t, creator, model.LatLng{Latitude: 10, Longitude: 10})
		if _, err := s.Memberships().Add(ctx, v.VaultID, uploader.MemberID); err != nil {
			t.Fatalf("Add: %v", err)
		}
		for i := 0; i < 5; i++ {
			if _, err := s.Assets().Create(ctx, &model.Asset{
				AssetID:    uuid.NewString(),
				VaultID:    v.VaultID,
				UploaderID: uploader.MemberID,
				Type:       "note",
				Payload:    []byte{byte(i)},
			}); err != nil {
				t.Fatalf("CreateAsset %d: %v", i, err)
			}
		}

		page, err := s.Assets().ListByVault(ctx, v.VaultID, 2, 2)
		if err != nil || len(page) != 2 {
			t.Fatalf("ListByVault page: n=%d err=%v", len(page), err)
		}
		all, err := s.Assets().ListByVault(ctx, v.VaultID, 0, 0)
		if err != nil || len(all) != 5 {
			t.Fatalf("ListByVault all: n=%d err=%v", len(all), err)
		}

		if err := s.Assets().DeleteByUploader(ctx, uploader.MemberID); err != nil {
			t.Fatalf("DeleteByUploader: %v", err)
		}
		if as, err := s.Assets().ListByVault(ctx, v.VaultID, 0, 0); err != nil || len(as) != 0 {
			t.Fatalf("assets after purge: n=%d err=%v", len(as), err)
		}
	})

	t.Run("RecordLoginRejectsReplay", func(t *testing.T) {
		m := newMember(t)

		if err := s.Members().RecordLogin(ctx, m.Issuer, 2000); err != nil {
			t.Fatalf("RecordLogin advance: %v", err)
		}
		if err := s.Members().RecordLogin(ctx, m.Issuer, 2000); !errors.Is(err, model.ErrReplayDetected) {
			t.Fatalf("RecordLogin equal: err=%v", err)
		}
		if err := s.Members().RecordLogin(ctx, m.Issuer, 1500); !errors.Is(err, model.ErrReplayDetected) {
			t.Fatalf("RecordLogin older: err=%v", err)
		}
		if err := s.Members().RecordLogin(ctx, "did:test:missing", 9000); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("RecordLogin missing issuer: err=%v", err)
		}
		got, err := s.Members().GetByIssuer(ctx, m.Issuer)
		if err != nil || got.LastLoginAt != 2000 {
			t.Fatalf("LastLoginAt after replay attempts: got=%v err=%v", got, err)
		}
	})
}

func ids(vs []*model.NearbyVault) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.VaultID
	}
	return out
}
