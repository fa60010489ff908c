package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dropspot/dropspot/internal/auth"
	"github.com/dropspot/dropspot/internal/model"
	"github.com/dropspot/dropspot/internal/store"
)

// --- Fakes ---

type fakeStore struct {
	vaults      map[string]*model.Vault
	members     map[string]*model.Member
	memberships map[string]bool
	assets      map[string]*model.Asset

	redeemErr      error
	deleteVaultErr error
	deletedVaults  []string

	// onCreateMember runs before a member insert, letting tests slip a
	// competing row in first.
	onCreateMember func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		vaults:      map[string]*model.Vault{},
		members:     map[string]*model.Member{},
		memberships: map[string]bool{},
		assets:      map[string]*model.Asset{},
	}
}

func (f *fakeStore) addMember(m *model.Member)             { f.members[m.MemberID] = m }
func (f *fakeStore) addVault(v *model.Vault)               { f.vaults[v.VaultID] = v }
func (f *fakeStore) addMembership(vaultID, memberID string) {
	f.memberships[vaultID+"|"+memberID] = true
}

func (f *fakeStore) Members() store.Members         { return &fakeMembers{f} }
func (f *fakeStore) Vaults() store.Vaults           { return &fakeVaults{f} }
func (f *fakeStore) Memberships() store.Memberships { return &fakeMemberships{f} }
func (f *fakeStore) Assets() store.Assets           { return &fakeAssets{f} }
func (f *fakeStore) Ping(context.Context) error     { return nil }

type fakeMembers struct{ p *fakeStore }

func (m *fakeMembers) Create(_ context.Context, in *model.Member) (*model.Member, error) {
	if m.p.onCreateMember != nil {
		m.p.onCreateMember()
	}
	for _, mb := range m.p.members {
		if mb.Issuer == in.Issuer {
			return nil, fmt.Errorf("member %s: %w", in.Issuer, model.ErrAccountExists)
		}
	}
	m.p.members[in.MemberID] = in
	return in, nil
}
func (m *fakeMembers) GetByID(_ context.Context, id string) (*model.Member, error) {
	if mb, ok := m.p.members[id]; ok {
		return mb, nil
	}
	return nil, model.ErrNotFound
}
func (m *fakeMembers) GetByIssuer(_ context.Context, issuer string) (*model.Member, error) {
	for _, mb := range m.p.members {
		if mb.Issuer == issuer {
			return mb, nil
		}
	}
	return nil, model.ErrNotFound
}
func (m *fakeMembers) RecordLogin(_ context.Context, issuer string, issuedAt int64) error {
	for _, mb := range m.p.members {
		if mb.Issuer == issuer {
			if issuedAt <= mb.LastLoginAt {
				return model.ErrReplayDetected
			}
			mb.LastLoginAt = issuedAt
			return nil
		}
	}
	return model.ErrNotFound
}
func (m *fakeMembers) List(context.Context) ([]*model.Member, error) { panic("unused") }
func (m *fakeMembers) ListByVault(_ context.Context, vaultID string) ([]*model.Member, error) {
	var out []*model.Member
	for _, mb := range m.p.members {
		if m.p.memberships[vaultID+"|"+mb.MemberID] {
			out = append(out, mb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

type fakeVaults struct{ p *fakeStore }

func (v *fakeVaults) Create(_ context.Context, in *model.Vault) (*model.Vault, error) {
	if _, ok := v.p.members[in.CreatorID]; !ok {
		return nil, model.ErrNotFound
	}
	v.p.vaults[in.VaultID] = in
	v.p.memberships[in.VaultID+"|"+in.CreatorID] = true
	return in, nil
}
func (v *fakeVaults) GetByID(_ context.Context, vaultID string) (*model.Vault, error) {
	if vt, ok := v.p.vaults[vaultID]; ok {
		return vt, nil
	}
	return nil, model.ErrNotFound
}
func (v *fakeVaults) List(context.Context) ([]*model.Vault, error) { panic("unused") }
func (v *fakeVaults) ListByMember(context.Context, string) ([]*model.Vault, error) {
	panic("unused")
}
func (v *fakeVaults) Nearby(context.Context, string, model.LatLng, float64, int) ([]*model.NearbyVault, error) {
	panic("unused")
}
func (v *fakeVaults) RedeemInvite(_ context.Context, vaultID, presentedKey, memberID, newKey string) error {
	if v.p.redeemErr != nil {
		return v.p.redeemErr
	}
	vt, ok := v.p.vaults[vaultID]
	if !ok {
		return model.ErrNotFound
	}
	if vt.InviteKey != presentedKey {
		return model.ErrInvalidInvite
	}
	if v.p.memberships[vaultID+"|"+memberID] {
		return model.ErrAlreadyMember
	}
	v.p.memberships[vaultID+"|"+memberID] = true
	vt.InviteKey = newKey
	return nil
}
func (v *fakeVaults) Delete(_ context.Context, vaultID string) error {
	if v.p.deleteVaultErr != nil {
		return v.p.deleteVaultErr
	}
	if _, ok := v.p.vaults[vaultID]; !ok {
		return model.ErrNotFound
	}
	delete(v.p.vaults, vaultID)
	v.p.deletedVaults = append(v.p.deletedVaults, vaultID)
	return nil
}

type fakeMemberships struct{ p *fakeStore }

func (m *fakeMemberships) Add(_ context.Context, vaultID, memberID string) (*model.Membership, error) {
	key := vaultID + "|" + memberID
	if m.p.memberships[key] {
		return nil, model.ErrAlreadyMember
	}
	if _, ok := m.p.vaults[vaultID]; !ok {
		return nil, model.ErrNotFound
	}
	m.p.memberships[key] = true
	return &model.Membership{VaultID: vaultID, MemberID: memberID}, nil
}
func (m *fakeMemberships) Exists(_ context.Context, vaultID, memberID string) (bool, error) {
	return m.p.memberships[vaultID+"|"+memberID], nil
}

type fakeAssets struct{ p *fakeStore }

func (a *fakeAssets) Create(_ context.Context, in *model.Asset) (*model.Asset, error) {
	a.p.assets[in.AssetID] = in
	return in, nil
}
func (a *fakeAssets) GetByID(_ context.Context, assetID string) (*model.Asset, error) {
	if as, ok := a.p.assets[assetID]; ok {
		return as, nil
	}
	return nil, model.ErrNotFound
}
func (a *fakeAssets) ListByVault(_ context.Context, vaultID string, offset, limit int) ([]*model.Asset, error) {
	var out []*model.Asset
	for _, as := range a.p.assets {
		if as.VaultID == vaultID {
			copied := *as
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (a *fakeAssets) Delete(_ context.Context, assetID string) error {
	if _, ok := a.p.assets[assetID]; !ok {
		return model.ErrNotFound
	}
	delete(a.p.assets, assetID)
	return nil
}
func (a *fakeAssets) DeleteByVault(_ context.Context, vaultID string) error {
	for id, as := range a.p.assets {
		if as.VaultID == vaultID {
			delete(a.p.assets, id)
		}
	}
	return nil
}
func (a *fakeAssets) DeleteByUploader(_ context.Context, memberID string) error {
	for id, as := range a.p.assets {
		if as.UploaderID == memberID {
			delete(a.p.assets, id)
		}
	}
	return nil
}
func (a *fakeAssets) StorageKeysByVault(_ context.Context, vaultID string) ([]string, error) {
	var out []string
	for _, as := range a.p.assets {
		if as.VaultID == vaultID && as.StorageKey != nil {
			out = append(out, *as.StorageKey)
		}
	}
	sort.Strings(out)
	return out, nil
}
func (a *fakeAssets) StorageKeysByUploader(_ context.Context, memberID string) ([]string, error) {
	var out []string
	for _, as := range a.p.assets {
		if as.UploaderID == memberID && as.StorageKey != nil {
			out = append(out, *as.StorageKey)
		}
	}
	sort.Strings(out)
	return out, nil
}

type fakeBlob struct {
	objects   map[string][]byte
	removed   []string
	removeErr error
}

func newFakeBlob() *fakeBlob { return &fakeBlob{objects: map[string][]byte{}} }

func (b *fakeBlob) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return "", err
	}
	b.objects[key] = buf.Bytes()
	return fmt.Sprintf("http://blob.test/drops/%s", key), nil
}
func (b *fakeBlob) Remove(_ context.Context, key string) error {
	if b.removeErr != nil {
		return b.removeErr
	}
	delete(b.objects, key)
	b.removed = append(b.removed, key)
	return nil
}
func (b *fakeBlob) Ping(context.Context) error { return nil }

type fakeVerifier struct {
	identity auth.Identity
	err      error
}

func (v *fakeVerifier) Verify(context.Context, string) (auth.Identity, error) {
	return v.identity, v.err
}
