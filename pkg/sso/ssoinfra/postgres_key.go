package ssoinfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
)

type keyRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Value     string         `db:"value"`
	Enabled   bool           `db:"is_enabled"`
	Revoked   bool           `db:"is_revoked"`
	Type      string         `db:"key_type"`
	ServiceID sql.NullString `db:"service_id"`
	UserID    sql.NullString `db:"user_id"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

const keyColumns = `id, name, value, is_enabled, is_revoked, key_type, service_id, user_id, created_at, updated_at`

// toDomain is the only place nullable scope columns are interpreted.
func (r keyRow) toDomain() (*sso.Key, error) {
	var (
		serviceID *kernel.ServiceID
		userID    *kernel.UserID
	)
	if r.ServiceID.Valid {
		id := kernel.ServiceID(r.ServiceID.String)
		serviceID = &id
	}
	if r.UserID.Valid {
		id := kernel.UserID(r.UserID.String)
		userID = &id
	}
	scope, err := sso.NewKeyScope(serviceID, userID)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", r.ID, err)
	}
	return &sso.Key{
		ID:        kernel.KeyID(r.ID),
		Name:      r.Name,
		Value:     r.Value,
		Enabled:   r.Enabled,
		Revoked:   r.Revoked,
		Type:      sso.KeyType(r.Type),
		Scope:     scope,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func toKeyRow(k *sso.Key) keyRow {
	row := keyRow{
		ID:        k.ID.String(),
		Name:      k.Name,
		Value:     k.Value,
		Enabled:   k.Enabled,
		Revoked:   k.Revoked,
		Type:      string(k.Type),
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
	}
	serviceID, userID := sso.ScopeColumns(k.Scope)
	if serviceID != nil {
		row.ServiceID = sql.NullString{String: serviceID.String(), Valid: true}
	}
	if userID != nil {
		row.UserID = sql.NullString{String: userID.String(), Valid: true}
	}
	return row
}

func (d *PostgresDriver) KeyCreate(ctx context.Context, key *sso.Key) error {
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO sso_key (`+keyColumns+`)
		VALUES (:id, :name, :value, :is_enabled, :is_revoked, :key_type, :service_id, :user_id, :created_at, :updated_at)`,
		toKeyRow(key))
	return err
}

const usableFirst = `ORDER BY (is_enabled AND NOT is_revoked) DESC, created_at DESC LIMIT 1`

func (d *PostgresDriver) KeyRead(ctx context.Context, read sso.KeyRead) (*sso.Key, error) {
	var (
		query string
		args  []any
	)
	switch r := read.(type) {
	case sso.KeyReadID:
		query = `SELECT ` + keyColumns + ` FROM sso_key WHERE id = $1`
		args = []any{r.ID.String()}
	case sso.KeyReadRootValue:
		query = `SELECT ` + keyColumns + ` FROM sso_key
			WHERE value = $1 AND service_id IS NULL AND user_id IS NULL
			AND is_enabled AND NOT is_revoked LIMIT 1`
		args = []any{r.Value}
	case sso.KeyReadServiceValue:
		query = `SELECT ` + keyColumns + ` FROM sso_key
			WHERE value = $1 AND service_id IS NOT NULL AND user_id IS NULL
			AND is_enabled AND NOT is_revoked LIMIT 1`
		args = []any{r.Value}
	case sso.KeyReadUserID:
		query = `SELECT ` + keyColumns + ` FROM sso_key
			WHERE service_id = $1 AND user_id = $2 AND key_type = $3 ` + usableFirst
		args = []any{r.ServiceID.String(), r.UserID.String(), string(r.Type)}
	case sso.KeyReadUserValue:
		query = `SELECT ` + keyColumns + ` FROM sso_key
			WHERE service_id = $1 AND value = $2 AND key_type = $3 AND user_id IS NOT NULL ` + usableFirst
		args = []any{r.ServiceID.String(), r.Value, string(r.Type)}
	default:
		return nil, fmt.Errorf("unsupported key read %T", read)
	}

	var row keyRow
	err := d.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// KeyUpdate never clears is_revoked, revocation is permanent.
func (d *PostgresDriver) KeyUpdate(ctx context.Context, key *sso.Key) error {
	key.UpdatedAt = d.now().UTC()
	res, err := d.db.ExecContext(ctx, `
		UPDATE sso_key SET name = $2, is_enabled = $3, is_revoked = is_revoked OR $4, updated_at = $5
		WHERE id = $1`,
		key.ID.String(), key.Name, key.Enabled, key.Revoked, key.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sso.ErrKeyNotFound()
	}
	return nil
}

func (d *PostgresDriver) KeyRevokeUser(ctx context.Context, id kernel.UserID) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE sso_key SET is_revoked = TRUE, updated_at = $2
		WHERE user_id = $1 AND NOT is_revoked`,
		id.String(), d.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *PostgresDriver) KeyList(ctx context.Context, list sso.KeyList) ([]sso.Key, int, error) {
	opts := list.PaginationOptions.Normalize()
	var serviceID, userID sql.NullString
	if list.ServiceID != nil {
		serviceID = sql.NullString{String: list.ServiceID.String(), Valid: true}
	}
	if list.UserID != nil {
		userID = sql.NullString{String: list.UserID.String(), Valid: true}
	}
	const where = `WHERE ($1::text IS NULL OR service_id = $1) AND ($2::text IS NULL OR user_id = $2)`

	var total int
	if err := d.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sso_key `+where, serviceID, userID); err != nil {
		return nil, 0, err
	}
	var rows []keyRow
	err := d.db.SelectContext(ctx, &rows, `SELECT `+keyColumns+` FROM sso_key `+where+`
		ORDER BY created_at, id LIMIT $3 OFFSET $4`,
		serviceID, userID, opts.PageSize, opts.Offset())
	if err != nil {
		return nil, 0, err
	}
	keys := make([]sso.Key, 0, len(rows))
	for _, row := range rows {
		k, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		keys = append(keys, *k)
	}
	return keys, total, nil
}

// ============================================================================
// Csrf
// ============================================================================

type csrfRow struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	ServiceID string    `db:"service_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (d *PostgresDriver) CsrfCreate(ctx context.Context, csrf *sso.Csrf) error {
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO sso_csrf (key, value, service_id, expires_at, created_at)
		VALUES (:key, :value, :service_id, :expires_at, :created_at)`,
		csrfRow{
			Key:       csrf.Key,
			Value:     csrf.Value,
			ServiceID: csrf.ServiceID.String(),
			ExpiresAt: csrf.ExpiresAt,
			CreatedAt: csrf.CreatedAt,
		})
	return err
}

// CsrfConsume deletes and returns the row in a single statement, so only one
// of any concurrent callers gets it. Rows of another service never match.
func (d *PostgresDriver) CsrfConsume(ctx context.Context, serviceID kernel.ServiceID, key string) (*sso.Csrf, error) {
	var row csrfRow
	err := d.db.GetContext(ctx, &row, `
		DELETE FROM sso_csrf WHERE key = $1 AND service_id = $2
		RETURNING key, value, service_id, expires_at, created_at`, key, serviceID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sso.Csrf{
		Key:       row.Key,
		Value:     row.Value,
		ServiceID: kernel.ServiceID(row.ServiceID),
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (d *PostgresDriver) CsrfDeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM sso_csrf WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
