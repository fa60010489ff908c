// Package sqlite is the embedded store adapter used for local development
// and hermetic tests. Vault locations are plain latitude/longitude columns;
// the nearby query pulls the member's vaults and does geodesic filtering and
// ordering in Go with the same distance function for both.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dropspot/dropspot/internal/geo"
	"github.com/dropspot/dropspot/internal/model"
	"github.com/dropspot/dropspot/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS members (
    member_id     TEXT PRIMARY KEY,
    issuer        TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL UNIQUE,
    last_login_at INTEGER NOT NULL,
    creation_time TIMESTAMP NOT NULL,
    update_time   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS vaults (
    vault_id      TEXT PRIMARY KEY,
    invite_key    TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL,
    latitude      REAL NOT NULL,
    longitude     REAL NOT NULL,
    creator_id    TEXT NOT NULL,
    creation_time TIMESTAMP NOT NULL,
    update_time   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS vault_members (
    vault_id      TEXT NOT NULL REFERENCES vaults (vault_id),
    member_id     TEXT NOT NULL REFERENCES members (member_id),
    creation_time TIMESTAMP NOT NULL,
    PRIMARY KEY (vault_id, member_id)
);
CREATE TABLE IF NOT EXISTS assets (
    asset_id      TEXT PRIMARY KEY,
    vault_id      TEXT NOT NULL REFERENCES vaults (vault_id),
    uploader_id   TEXT NOT NULL REFERENCES members (member_id),
    asset_type    TEXT NOT NULL,
    payload       BLOB NOT NULL,
    storage_key   TEXT,
    creation_time TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS assets_vault_idx ON assets (vault_id);
CREATE INDEX IF NOT EXISTS assets_uploader_idx ON assets (uploader_id);
`

// New constructs a SQLite store over an opened connection, ensuring the
// schema exists.
func New(db *sql.DB) (store.Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &liteStore{db: db}, nil
}

type liteStore struct{ db *sql.DB }

func (s *liteStore) Members() store.Members         { return &members{db: s.db} }
func (s *liteStore) Vaults() store.Vaults           { return &vaults{db: s.db} }
func (s *liteStore) Memberships() store.Memberships { return &memberships{db: s.db} }
func (s *liteStore) Assets() store.Assets           { return &assets{db: s.db} }

func (s *liteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// --- Members ---

type members struct{ db *sql.DB }

func (m *members) Create(ctx context.Context, in *model.Member) (*model.Member, error) {
	now := time.Now().UTC()
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO members (member_id, issuer, email, last_login_at, creation_time, update_time)
        VALUES (?,?,?,?,?,?)
    `, in.MemberID, in.Issuer, in.Email, in.LastLoginAt, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("member %s: %w", in.Issuer, model.ErrAccountExists)
		}
		return nil, err
	}
	out := *in
	out.CreationTime = now
	out.UpdateTime = now
	return &out, nil
}

func (m *members) GetByID(ctx context.Context, memberID string) (*model.Member, error) {
	return scanMember(m.db.QueryRowContext(ctx, `
        SELECT member_id, issuer, email, last_login_at, creation_time, update_time
        FROM members WHERE member_id = ?
    `, memberID))
}

func (m *members) GetByIssuer(ctx context.Context, issuer string) (*model.Member, error) {
	return scanMember(m.db.QueryRowContext(ctx, `
        SELECT member_id, issuer, email, last_login_at, creation_time, update_time
        FROM members WHERE issuer = ?
    `, issuer))
}

func scanMember(row *sql.Row) (*model.Member, error) {
	var out model.Member
	err := row.Scan(&out.MemberID, &out.Issuer, &out.Email, &out.LastLoginAt, &out.CreationTime, &out.UpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *members) RecordLogin(ctx context.Context, issuer string, issuedAt int64) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE members SET last_login_at = ?, update_time = ?
        WHERE issuer = ? AND last_login_at < ?
    `, issuedAt, time.Now().UTC(), issuer, issuedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := m.GetByIssuer(ctx, issuer); err != nil {
			return err
		}
		return fmt.Errorf("issuer %s issued_at %d: %w", issuer, issuedAt, model.ErrReplayDetected)
	}
	return nil
}

func (m *members) List(ctx context.Context) ([]*model.Member, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT member_id, issuer, email, last_login_at, creation_time, update_time
        FROM members ORDER BY member_id
    `)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

func (m *members) ListByVault(ctx context.Context, vaultID string) ([]*model.Member, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT mb.member_id, mb.issuer, mb.email, mb.last_login_at, mb.creation_time, mb.update_time
        FROM members mb
        JOIN vault_members vm ON vm.member_id = mb.member_id
        WHERE vm.vault_id = ?
        ORDER BY mb.member_id
    `, vaultID)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

func collectMembers(rows *sql.Rows) ([]*model.Member, error) {
	defer func() { _ = rows.Close() }()
	var out []*model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.MemberID, &m.Issuer, &m.Email, &m.LastLoginAt, &m.CreationTime, &m.UpdateTime); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Vaults ---

type vaults struct{ db *sql.DB }

func (v *vaults) Create(ctx context.Context, in *model.Vault) (*model.Vault, error) {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO vaults (vault_id, invite_key, name, latitude, longitude, creator_id, creation_time, update_time)
        VALUES (?,?,?,?,?,?,?,?)
    `, in.VaultID, in.InviteKey, in.Name, in.Location.Latitude, in.Location.Longitude, in.CreatorID, now, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO vault_members (vault_id, member_id, creation_time) VALUES (?,?,?)
    `, in.VaultID, in.CreatorID, now); err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("creator %s: %w", in.CreatorID, model.ErrNotFound)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out := *in
	out.CreationTime = now
	out.UpdateTime = now
	return &out, nil
}

func (v *vaults) GetByID(ctx context.Context, vaultID string) (*model.Vault, error) {
	return scanVaultRow(v.db.QueryRowContext(ctx, `
        SELECT vault_id, invite_key, name, latitude, longitude, creator_id, creation_time, update_time
        FROM vaults WHERE vault_id = ?
    `, vaultID))
}

func scanVaultRow(row *sql.Row) (*model.Vault, error) {
	var out model.Vault
	err := row.Scan(&out.VaultID, &out.InviteKey, &out.Name,
		&out.Location.Latitude, &out.Location.Longitude,
		&out.CreatorID, &out.CreationTime, &out.UpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (v *vaults) List(ctx context.Context) ([]*model.Vault, error) {
	rows, err := v.db.QueryContext(ctx, `
        SELECT vault_id, invite_key, name, latitude, longitude, creator_id, creation_time, update_time
        FROM vaults ORDER BY vault_id
    `)
	if err != nil {
		return nil, err
	}
	return collectVaults(rows)
}

func (v *vaults) ListByMember(ctx context.Context, memberID string) ([]*model.Vault, error) {
	rows, err := v.db.QueryContext(ctx, `
        SELECT vt.vault_id, vt.invite_key, vt.name, vt.latitude, vt.longitude, vt.creator_id, vt.creation_time, vt.update_time
        FROM vaults vt
        JOIN vault_members vm ON vm.vault_id = vt.vault_id
        WHERE vm.member_id = ?
        ORDER BY vt.vault_id
    `, memberID)
	if err != nil {
		return nil, err
	}
	return collectVaults(rows)
}

func collectVaults(rows *sql.Rows) ([]*model.Vault, error) {
	defer func() { _ = rows.Close() }()
	var out []*model.Vault
	for rows.Next() {
		var vt model.Vault
		if err := rows.Scan(&vt.VaultID, &vt.InviteKey, &vt.Name,
			&vt.Location.Latitude, &vt.Location.Longitude,
			&vt.CreatorID, &vt.CreationTime, &vt.UpdateTime); err != nil {
			return nil, err
		}
		out = append(out, &vt)
	}
	return out, rows.Err()
}

func (v *vaults) Nearby(ctx context.Context, memberID string, p model.LatLng, radiusMeters float64, limit int) ([]*model.NearbyVault, error) {
	candidates, err := v.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	var out []*model.NearbyVault
	for _, vt := range candidates {
		d := geo.Meters(p, vt.Location)
		if d > radiusMeters {
			continue
		}
		out = append(out, &model.NearbyVault{
			VaultID:        vt.VaultID,
			InviteKey:      vt.InviteKey,
			Name:           vt.Name,
			Location:       vt.Location,
			DistanceMeters: d,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].VaultID < out[j].VaultID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *vaults) RedeemInvite(ctx context.Context, vaultID, presentedKey, memberID, newKey string) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var currentKey string
	err = tx.QueryRowContext(ctx, `SELECT invite_key FROM vaults WHERE vault_id = ?`, vaultID).Scan(&currentKey)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("vault %s: %w", vaultID, model.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if currentKey != presentedKey {
		return fmt.Errorf("vault %s: %w", vaultID, model.ErrInvalidInvite)
	}

	res, err := tx.ExecContext(ctx, `
        INSERT OR IGNORE INTO vault_members (vault_id, member_id, creation_time) VALUES (?,?,?)
    `, vaultID, memberID, time.Now().UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("member %s: %w", memberID, model.ErrNotFound)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("vault %s member %s: %w", vaultID, memberID, model.ErrAlreadyMember)
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE vaults SET invite_key = ?, update_time = ? WHERE vault_id = ?
    `, newKey, time.Now().UTC(), vaultID); err != nil {
		return err
	}
	return tx.Commit()
}

func (v *vaults) Delete(ctx context.Context, vaultID string) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE vault_id = ?`, vaultID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vault_members WHERE vault_id = ?`, vaultID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM vaults WHERE vault_id = ?`, vaultID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vault %s: %w", vaultID, model.ErrNotFound)
	}
	return tx.Commit()
}

// --- Memberships ---

type memberships struct{ db *sql.DB }

func (ms *memberships) Add(ctx context.Context, vaultID, memberID string) (*model.Membership, error) {
	now := time.Now().UTC()
	_, err := ms.db.ExecContext(ctx, `
        INSERT INTO vault_members (vault_id, member_id, creation_time) VALUES (?,?,?)
    `, vaultID, memberID, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("vault %s member %s: %w", vaultID, memberID, model.ErrAlreadyMember)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("vault %s member %s: %w", vaultID, memberID, model.ErrNotFound)
		}
		return nil, err
	}
	return &model.Membership{VaultID: vaultID, MemberID: memberID, CreationTime: now}, nil
}

func (ms *memberships) Exists(ctx context.Context, vaultID, memberID string) (bool, error) {
	var one int
	err := ms.db.QueryRowContext(ctx, `
        SELECT 1 FROM vault_members WHERE vault_id = ? AND member_id = ?
    `, vaultID, memberID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- Assets ---

type assets struct{ db *sql.DB }

func (a *assets) Create(ctx context.Context, in *model.Asset) (*model.Asset, error) {
	now := time.Now().UTC()
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO assets (asset_id, vault_id, uploader_id, asset_type, payload, storage_key, creation_time)
        VALUES (?,?,?,?,?,?,?)
    `, in.AssetID, in.VaultID, in.UploaderID, in.Type, in.Payload, in.StorageKey, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("vault %s or uploader %s: %w", in.VaultID, in.UploaderID, model.ErrNotFound)
		}
		return nil, err
	}
	out := *in
	out.CreationTime = now
	return &out, nil
}

func (a *assets) GetByID(ctx context.Context, assetID string) (*model.Asset, error) {
	var out model.Asset
	err := a.db.QueryRowContext(ctx, `
        SELECT asset_id, vault_id, uploader_id, asset_type, payload, storage_key, creation_time
        FROM assets WHERE asset_id = ?
    `, assetID).Scan(&out.AssetID, &out.VaultID, &out.UploaderID, &out.Type, &out.Payload, &out.StorageKey, &out.CreationTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *assets) ListByVault(ctx context.Context, vaultID string, offset, limit int) ([]*model.Asset, error) {
	query := `
        SELECT asset_id, vault_id, uploader_id, asset_type, payload, storage_key, creation_time
        FROM assets WHERE vault_id = ? ORDER BY creation_time, asset_id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	rows, err := a.db.QueryContext(ctx, query, vaultID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Asset
	for rows.Next() {
		var as model.Asset
		if err := rows.Scan(&as.AssetID, &as.VaultID, &as.UploaderID, &as.Type, &as.Payload, &as.StorageKey, &as.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &as)
	}
	return out, rows.Err()
}

func (a *assets) Delete(ctx context.Context, assetID string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM assets WHERE asset_id = ?`, assetID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("asset %s: %w", assetID, model.ErrNotFound)
	}
	return nil
}

func (a *assets) DeleteByVault(ctx context.Context, vaultID string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM assets WHERE vault_id = ?`, vaultID)
	return err
}

func (a *assets) DeleteByUploader(ctx context.Context, memberID string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM assets WHERE uploader_id = ?`, memberID)
	return err
}

func (a *assets) StorageKeysByVault(ctx context.Context, vaultID string) ([]string, error) {
	return a.storageKeys(ctx, `SELECT storage_key FROM assets WHERE vault_id = ? AND storage_key IS NOT NULL`, vaultID)
}

func (a *assets) StorageKeysByUploader(ctx context.Context, memberID string) ([]string, error) {
	return a.storageKeys(ctx, `SELECT storage_key FROM assets WHERE uploader_id = ? AND storage_key IS NOT NULL`, memberID)
}

func (a *assets) storageKeys(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
