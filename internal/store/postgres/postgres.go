package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dropspot/dropspot/internal/model"
	"github.com/dropspot/dropspot/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies
// connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Members() store.Members         { return &members{db: s.db} }
func (s *pgStore) Vaults() store.Vaults           { return &vaults{db: s.db} }
func (s *pgStore) Memberships() store.Memberships { return &memberships{db: s.db} }
func (s *pgStore) Assets() store.Assets           { return &assets{db: s.db} }

func (s *pgStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// --- Members ---

type members struct{ db *sql.DB }

func (m *members) Create(ctx context.Context, in *model.Member) (*model.Member, error) {
	var created, updated time.Time
	row := m.db.QueryRowContext(ctx, `
        INSERT INTO members (member_id, issuer, email, last_login_at)
        VALUES ($1,$2,$3,$4)
        RETURNING creation_time, update_time
    `, in.MemberID, in.Issuer, in.Email, in.LastLoginAt)
	if err := row.Scan(&created, &updated); err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, fmt.Errorf("member %s: %w", in.Issuer, model.ErrAccountExists)
		}
		return nil, err
	}
	out := *in
	out.CreationTime = created
	out.UpdateTime = updated
	return &out, nil
}

func (m *members) GetByID(ctx context.Context, memberID string) (*model.Member, error) {
	return m.scanOne(m.db.QueryRowContext(ctx, `
        SELECT member_id, issuer, email, last_login_at, creation_time, update_time
        FROM members WHERE member_id=$1
    `, memberID))
}

func (m *members) GetByIssuer(ctx context.Context, issuer string) (*model.Member, error) {
	return m.scanOne(m.db.QueryRowContext(ctx, `
        SELECT member_id, issuer, email, last_login_at, creation_time, update_time
        FROM members WHERE issuer=$1
    `, issuer))
}

func (m *members) scanOne(row *sql.Row) (*model.Member, error) {
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

// RecordLogin advances last_login_at in a single conditional UPDATE so the
// monotonicity check and the write cannot interleave with a concurrent login.
func (m *members) RecordLogin(ctx context.Context, issuer string, issuedAt int64) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE members SET last_login_at=$2, update_time=now()
        WHERE issuer=$1 AND last_login_at < $2
    `, issuer, issuedAt)
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
	return scanMembers(rows)
}

func (m *members) ListByVault(ctx context.Context, vaultID string) ([]*model.Member, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT mb.member_id, mb.issuer, mb.email, mb.last_login_at, mb.creation_time, mb.update_time
        FROM members mb
        JOIN vault_members vm ON vm.member_id = mb.member_id
        WHERE vm.vault_id=$1
        ORDER BY mb.member_id
    `, vaultID)
	if err != nil {
		return nil, err
	}
	return scanMembers(rows)
}

func scanMembers(rows *sql.Rows) ([]*model.Member, error) {
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

const vaultColumns = `vault_id, invite_key, name,
    ST_Y(location::geometry), ST_X(location::geometry),
    creator_id, creation_time, update_time`

func (v *vaults) Create(ctx context.Context, in *model.Vault) (*model.Vault, error) {
	tx, err := v.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var created, updated time.Time
	row := tx.QueryRowContext(ctx, `
        INSERT INTO vaults (vault_id, invite_key, name, location, creator_id)
        VALUES ($1,$2,$3, ST_SetSRID(ST_MakePoint($4,$5),4326)::geography, $6)
        RETURNING creation_time, update_time
    `, in.VaultID, in.InviteKey, in.Name, in.Location.Longitude, in.Location.Latitude, in.CreatorID)
	if err := row.Scan(&created, &updated); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO vault_members (vault_id, member_id) VALUES ($1,$2)
    `, in.VaultID, in.CreatorID); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return nil, fmt.Errorf("creator %s: %w", in.CreatorID, model.ErrNotFound)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out := *in
	out.CreationTime = created
	out.UpdateTime = updated
	return &out, nil
}

func (v *vaults) GetByID(ctx context.Context, vaultID string) (*model.Vault, error) {
	row := v.db.QueryRowContext(ctx, `SELECT `+vaultColumns+` FROM vaults WHERE vault_id=$1`, vaultID)
	return scanVault(row)
}

func scanVault(row *sql.Row) (*model.Vault, error) {
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
	rows, err := v.db.QueryContext(ctx, `SELECT `+vaultColumns+` FROM vaults ORDER BY vault_id`)
	if err != nil {
		return nil, err
	}
	return scanVaults(rows)
}

func (v *vaults) ListByMember(ctx context.Context, memberID string) ([]*model.Vault, error) {
	rows, err := v.db.QueryContext(ctx, `
        SELECT v.vault_id, v.invite_key, v.name,
               ST_Y(v.location::geometry), ST_X(v.location::geometry),
               v.creator_id, v.creation_time, v.update_time
        FROM vaults v
        JOIN vault_members vm ON vm.vault_id = v.vault_id
        WHERE vm.member_id=$1
        ORDER BY v.vault_id
    `, memberID)
	if err != nil {
		return nil, err
	}
	return scanVaults(rows)
}

func scanVaults(rows *sql.Rows) ([]*model.Vault, error) {
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

// Nearby ranks the member's vaults by geodesic distance on the geography
// type (spheroid). ST_DWithin and ST_Distance share the same model, so the
// radius predicate and the sort key cannot disagree. ST_DWithin is inclusive
// at the boundary.
func (v *vaults) Nearby(ctx context.Context, memberID string, p model.LatLng, radiusMeters float64, limit int) ([]*model.NearbyVault, error) {
	rows, err := v.db.QueryContext(ctx, `
        SELECT v.vault_id, v.invite_key, v.name,
               ST_Y(v.location::geometry), ST_X(v.location::geometry),
               ST_Distance(v.location, ST_SetSRID(ST_MakePoint($2,$3),4326)::geography) AS distance
        FROM vaults v
        JOIN vault_members vm ON vm.vault_id = v.vault_id
        WHERE vm.member_id=$1
          AND ST_DWithin(v.location, ST_SetSRID(ST_MakePoint($2,$3),4326)::geography, $4)
        ORDER BY distance, v.vault_id
        LIMIT $5
    `, memberID, p.Longitude, p.Latitude, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.NearbyVault
	for rows.Next() {
		var nv model.NearbyVault
		if err := rows.Scan(&nv.VaultID, &nv.InviteKey, &nv.Name,
			&nv.Location.Latitude, &nv.Location.Longitude, &nv.DistanceMeters); err != nil {
			return nil, err
		}
		out = append(out, &nv)
	}
	return out, rows.Err()
}

// RedeemInvite locks the vault row for the duration of the comparison,
// membership insert and key rotation. Concurrent redemptions of the same
// stale key serialize on the lock; the loser re-reads the rotated key and
// fails the comparison.
func (v *vaults) RedeemInvite(ctx context.Context, vaultID, presentedKey, memberID, newKey string) error {
	tx, err := v.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var currentKey string
	err = tx.QueryRowContext(ctx, `
        SELECT invite_key FROM vaults WHERE vault_id=$1 FOR UPDATE
    `, vaultID).Scan(&currentKey)
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
        INSERT INTO vault_members (vault_id, member_id)
        VALUES ($1,$2) ON CONFLICT DO NOTHING
    `, vaultID, memberID)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("member %s: %w", memberID, model.ErrNotFound)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Do not rotate: the invite is not spent by a duplicate join.
		return fmt.Errorf("vault %s member %s: %w", vaultID, memberID, model.ErrAlreadyMember)
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE vaults SET invite_key=$2, update_time=now() WHERE vault_id=$1
    `, vaultID, newKey); err != nil {
		return err
	}
	return tx.Commit()
}

func (v *vaults) Delete(ctx context.Context, vaultID string) error {
	tx, err := v.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE vault_id=$1`, vaultID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vault_members WHERE vault_id=$1`, vaultID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM vaults WHERE vault_id=$1`, vaultID)
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
	var created time.Time
	row := ms.db.QueryRowContext(ctx, `
        INSERT INTO vault_members (vault_id, member_id)
        VALUES ($1,$2)
        RETURNING creation_time
    `, vaultID, memberID)
	if err := row.Scan(&created); err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return nil, fmt.Errorf("vault %s member %s: %w", vaultID, memberID, model.ErrAlreadyMember)
		case pgForeignKeyViolation:
			return nil, fmt.Errorf("vault %s member %s: %w", vaultID, memberID, model.ErrNotFound)
		}
		return nil, err
	}
	return &model.Membership{VaultID: vaultID, MemberID: memberID, CreationTime: created}, nil
}

func (ms *memberships) Exists(ctx context.Context, vaultID, memberID string) (bool, error) {
	var one int
	err := ms.db.QueryRowContext(ctx, `
        SELECT 1 FROM vault_members WHERE vault_id=$1 AND member_id=$2
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
	var created time.Time
	row := a.db.QueryRowContext(ctx, `
        INSERT INTO assets (asset_id, vault_id, uploader_id, asset_type, payload, storage_key)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING creation_time
    `, in.AssetID, in.VaultID, in.UploaderID, in.Type, in.Payload, in.StorageKey)
	if err := row.Scan(&created); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return nil, fmt.Errorf("vault %s or uploader %s: %w", in.VaultID, in.UploaderID, model.ErrNotFound)
		}
		return nil, err
	}
	out := *in
	out.CreationTime = created
	return &out, nil
}

func (a *assets) GetByID(ctx context.Context, assetID string) (*model.Asset, error) {
	var out model.Asset
	err := a.db.QueryRowContext(ctx, `
        SELECT asset_id, vault_id, uploader_id, asset_type, payload, storage_key, creation_time
        FROM assets WHERE asset_id=$1
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
        FROM assets WHERE vault_id=$1 ORDER BY creation_time, asset_id`
	args := []interface{}{vaultID}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
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
	res, err := a.db.ExecContext(ctx, `DELETE FROM assets WHERE asset_id=$1`, assetID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("asset %s: %w", assetID, model.ErrNotFound)
	}
	return nil
}

func (a *assets) DeleteByVault(ctx context.Context, vaultID string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM assets WHERE vault_id=$1`, vaultID)
	return err
}

func (a *assets) DeleteByUploader(ctx context.Context, memberID string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM assets WHERE uploader_id=$1`, memberID)
	return err
}

func (a *assets) StorageKeysByVault(ctx context.Context, vaultID string) ([]string, error) {
	return a.storageKeys(ctx, `SELECT storage_key FROM assets WHERE vault_id=$1 AND storage_key IS NOT NULL`, vaultID)
}

func (a *assets) StorageKeysByUploader(ctx context.Context, memberID string) ([]string, error) {
	return a.storageKeys(ctx, `SELECT storage_key FROM assets WHERE uploader_id=$1 AND storage_key IS NOT NULL`, memberID)
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
