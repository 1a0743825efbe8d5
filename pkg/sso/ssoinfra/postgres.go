package ssoinfra

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
)

//go:embed schema.sql
var schema string

// PostgresDriver implements sso.Driver on PostgreSQL.
type PostgresDriver struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ sso.Driver = (*PostgresDriver)(nil)

func NewPostgresDriver(db *sqlx.DB) *PostgresDriver {
	return &PostgresDriver{db: db, now: time.Now}
}

// Migrate creates the tables when they do not exist.
func (d *PostgresDriver) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ============================================================================
// Services
// ============================================================================

type serviceRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	URL       string    `db:"url"`
	Enabled   bool      `db:"is_enabled"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r serviceRow) toDomain() *sso.Service {
	return &sso.Service{
		ID:        kernel.ServiceID(r.ID),
		Name:      r.Name,
		URL:       r.URL,
		Enabled:   r.Enabled,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (d *PostgresDriver) ServiceCreate(ctx context.Context, service *sso.Service) error {
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO sso_service (id, name, url, is_enabled, created_at, updated_at)
		VALUES (:id, :name, :url, :is_enabled, :created_at, :updated_at)`,
		serviceRow{
			ID:        service.ID.String(),
			Name:      service.Name,
			URL:       service.URL,
			Enabled:   service.Enabled,
			CreatedAt: service.CreatedAt,
			UpdatedAt: service.UpdatedAt,
		})
	return err
}

func (d *PostgresDriver) ServiceRead(ctx context.Context, id kernel.ServiceID) (*sso.Service, error) {
	var row serviceRow
	err := d.db.GetContext(ctx, &row, `
		SELECT id, name, url, is_enabled, created_at, updated_at
		FROM sso_service WHERE id = $1`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (d *PostgresDriver) ServiceUpdate(ctx context.Context, service *sso.Service) error {
	service.UpdatedAt = d.now().UTC()
	res, err := d.db.ExecContext(ctx, `
		UPDATE sso_service SET name = $2, url = $3, is_enabled = $4, updated_at = $5
		WHERE id = $1`,
		service.ID.String(), service.Name, service.URL, service.Enabled, service.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sso.ErrServiceNotFound()
	}
	return nil
}

func (d *PostgresDriver) ServiceList(ctx context.Context, opts kernel.PaginationOptions) ([]sso.Service, int, error) {
	opts = opts.Normalize()
	var total int
	if err := d.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sso_service`); err != nil {
		return nil, 0, err
	}
	var rows []serviceRow
	err := d.db.SelectContext(ctx, &rows, `
		SELECT id, name, url, is_enabled, created_at, updated_at
		FROM sso_service ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		opts.PageSize, opts.Offset())
	if err != nil {
		return nil, 0, err
	}
	services := make([]sso.Service, 0, len(rows))
	for _, row := range rows {
		services = append(services, *row.toDomain())
	}
	return services, total, nil
}

// ServiceDelete removes keys explicitly, CSRF entries go by cascade.
func (d *PostgresDriver) ServiceDelete(ctx context.Context, id kernel.ServiceID) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sso_key WHERE service_id = $1`, id.String()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sso_service WHERE id = $1`, id.String())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sso.ErrServiceNotFound()
		}
		return nil
	})
}

func (d *PostgresDriver) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ============================================================================
// Users
// ============================================================================

type userRow struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	Email            string         `db:"email"`
	Enabled          bool           `db:"is_enabled"`
	PasswordHash     sql.NullString `db:"password_hash"`
	PasswordRevision int64          `db:"password_revision"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

const userColumns = `id, name, email, is_enabled, password_hash, password_revision, created_at, updated_at`

func (r userRow) toDomain() *sso.User {
	u := &sso.User{
		ID:               kernel.UserID(r.ID),
		Name:             r.Name,
		Email:            r.Email,
		Enabled:          r.Enabled,
		PasswordRevision: r.PasswordRevision,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.PasswordHash.Valid {
		hash := r.PasswordHash.String
		u.PasswordHash = &hash
	}
	return u
}

func (d *PostgresDriver) UserCreate(ctx context.Context, user *sso.User) error {
	row := userRow{
		ID:               user.ID.String(),
		Name:             user.Name,
		Email:            user.Email,
		Enabled:          user.Enabled,
		PasswordRevision: user.PasswordRevision,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
	if user.PasswordHash != nil {
		row.PasswordHash = sql.NullString{String: *user.PasswordHash, Valid: true}
	}
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO sso_user (`+userColumns+`)
		VALUES (:id, :name, :email, :is_enabled, :password_hash, :password_revision, :created_at, :updated_at)`, row)
	if isUniqueViolation(err) {
		return sso.ErrUserEmailConflict()
	}
	return err
}

func (d *PostgresDriver) UserRead(ctx context.Context, read sso.UserRead) (*sso.User, error) {
	var (
		row userRow
		err error
	)
	if read.ID != "" {
		err = d.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM sso_user WHERE id = $1`, read.ID.String())
	} else {
		err = d.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM sso_user WHERE email = $1`, read.Email)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (d *PostgresDriver) UserUpdate(ctx context.Context, user *sso.User) error {
	user.UpdatedAt = d.now().UTC()
	res, err := d.db.ExecContext(ctx, `
		UPDATE sso_user SET name = $2, email = $3, is_enabled = $4, updated_at = $5
		WHERE id = $1`,
		user.ID.String(), user.Name, user.Email, user.Enabled, user.UpdatedAt)
	if isUniqueViolation(err) {
		return sso.ErrUserEmailConflict()
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sso.ErrUserNotFound()
	}
	return nil
}

func (d *PostgresDriver) UserUpdatePassword(ctx context.Context, id kernel.UserID, hash string) (int64, error) {
	var revision int64
	err := d.db.GetContext(ctx, &revision, `
		UPDATE sso_user
		SET password_hash = $2, password_revision = password_revision + 1, updated_at = $3
		WHERE id = $1
		RETURNING password_revision`,
		id.String(), hash, d.now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sso.ErrUserNotFound()
	}
	return revision, err
}

func (d *PostgresDriver) UserList(ctx context.Context, opts kernel.PaginationOptions) ([]sso.User, int, error) {
	opts = opts.Normalize()
	var total int
	if err := d.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sso_user`); err != nil {
		return nil, 0, err
	}
	var rows []userRow
	err := d.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+` FROM sso_user ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		opts.PageSize, opts.Offset())
	if err != nil {
		return nil, 0, err
	}
	users := make([]sso.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *row.toDomain())
	}
	return users, total, nil
}

func (d *PostgresDriver) UserDelete(ctx context.Context, id kernel.UserID) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sso_key WHERE user_id = $1`, id.String()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sso_user WHERE id = $1`, id.String())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sso.ErrUserNotFound()
		}
		return nil
	})
}

// ============================================================================
// Audit
// ============================================================================

type auditRow struct {
	ID        string         `db:"id"`
	CreatedAt time.Time      `db:"created_at"`
	UserAgent string         `db:"user_agent"`
	Remote    string         `db:"remote"`
	Forwarded sql.NullString `db:"forwarded"`
	Type      string         `db:"type"`
	Data      []byte         `db:"data"`
	KeyID     sql.NullString `db:"key_id"`
	ServiceID sql.NullString `db:"service_id"`
	UserID    sql.NullString `db:"user_id"`
	UserKeyID sql.NullString `db:"user_key_id"`
	Trail     []byte         `db:"trail"`
}

const auditColumns = `id, created_at, user_agent, remote, forwarded, type, data,
	key_id, service_id, user_id, user_key_id, trail`

func nullable[T ~string](v sql.NullString) *T {
	if !v.Valid {
		return nil
	}
	t := T(v.String)
	return &t
}

func (r auditRow) toDomain() (*sso.Audit, error) {
	a := &sso.Audit{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Meta: sso.AuditMeta{
			UserAgent: r.UserAgent,
			Remote:    r.Remote,
			Forwarded: nullable[string](r.Forwarded),
		},
		Type:      r.Type,
		KeyID:     nullable[kernel.KeyID](r.KeyID),
		ServiceID: nullable[kernel.ServiceID](r.ServiceID),
		UserID:    nullable[kernel.UserID](r.UserID),
		UserKeyID: nullable[kernel.KeyID](r.UserKeyID),
	}
	if len(r.Data) > 0 {
		a.Data = json.RawMessage(r.Data)
	}
	if err := json.Unmarshal(r.Trail, &a.Trail); err != nil {
		return nil, fmt.Errorf("audit %s trail: %w", r.ID, err)
	}
	return a, nil
}

func (d *PostgresDriver) AuditCreate(ctx context.Context, audit *sso.Audit) error {
	trail, err := json.Marshal(audit.Trail)
	if err != nil {
		return err
	}
	var data []byte
	if len(audit.Data) > 0 {
		data = audit.Data
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO sso_audit (id, created_at, user_agent, remote, forwarded, type, data,
			key_id, service_id, user_id, user_key_id, trail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		audit.ID, audit.CreatedAt, audit.Meta.UserAgent, audit.Meta.Remote, audit.Meta.Forwarded,
		audit.Type, data, audit.KeyID, audit.ServiceID, audit.UserID, audit.UserKeyID, trail)
	return err
}

func (d *PostgresDriver) AuditRead(ctx context.Context, id string) (*sso.Audit, error) {
	var row auditRow
	err := d.db.GetContext(ctx, &row, `SELECT `+auditColumns+` FROM sso_audit WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// AuditList filters with nullable parameters so one statement serves every
// combination.
func (d *PostgresDriver) AuditList(ctx context.Context, list sso.AuditList) ([]sso.Audit, int, error) {
	opts := list.PaginationOptions.Normalize()
	var serviceID, userID sql.NullString
	if list.ServiceID != nil {
		serviceID = sql.NullString{String: list.ServiceID.String(), Valid: true}
	}
	if list.UserID != nil {
		userID = sql.NullString{String: list.UserID.String(), Valid: true}
	}
	const where = `WHERE ($1::text IS NULL OR service_id = $1)
		AND ($2::text IS NULL OR user_id = $2)
		AND ($3 = '' OR type = $3)`

	var total int
	if err := d.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sso_audit `+where,
		serviceID, userID, list.Type); err != nil {
		return nil, 0, err
	}
	var rows []auditRow
	err := d.db.SelectContext(ctx, &rows, `SELECT `+auditColumns+` FROM sso_audit `+where+`
		ORDER BY created_at DESC, id DESC LIMIT $4 OFFSET $5`,
		serviceID, userID, list.Type, opts.PageSize, opts.Offset())
	if err != nil {
		return nil, 0, err
	}
	audits := make([]sso.Audit, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		audits = append(audits, *a)
	}
	return audits, total, nil
}
