package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finbooks/finbooks-auth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository       = (*PostgresUserRepo)(nil)
	_ CompanyRepository    = (*PostgresCompanyRepo)(nil)
	_ MembershipRepository = (*PostgresMembershipRepo)(nil)
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const userColumns = `id, email, username, password_hash, first_name, last_name, status, global_role,
failed_attempts, locked_until, last_login_at, last_activity_at, password_changed_at, created_at, updated_at`

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u        domain.User
		username *string
	)
	err := row.Scan(
		&u.ID, &u.Email, &username, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Status, &u.GlobalRole, &u.FailedAttempts, &u.LockedUntil,
		&u.LastLoginAt, &u.LastActivityAt, &u.PasswordChangedAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	if username != nil {
		u.Username = *username
	}
	return u, nil
}

const insertUserSQL = `INSERT INTO users (email, username, password_hash, first_name, last_name, status, global_role)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.Email, user.Username, user.PasswordHash,
		user.FirstName, user.LastName, user.Status, user.GlobalRole,
	)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// recordFailedAttemptSQL keeps the counter arithmetic inside one UPDATE so
// concurrent wrong-password requests cannot interleave a read-then-write.
const recordFailedAttemptSQL = `UPDATE users SET
	failed_attempts = CASE
		WHEN locked_until IS NOT NULL AND locked_until <= now() THEN 1
		WHEN failed_attempts + 1 >= $2 THEN 0
		ELSE failed_attempts + 1
	END,
	locked_until = CASE
		WHEN locked_until IS NOT NULL AND locked_until <= now() THEN NULL
		WHEN failed_attempts + 1 >= $2 THEN $3
		ELSE locked_until
	END,
	updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

func (r *PostgresUserRepo) RecordFailedAttempt(ctx context.Context, userID int64, threshold int, lockFor time.Duration) (domain.User, error) {
	lockUntil := time.Now().Add(lockFor)
	row := r.db.QueryRow(ctx, recordFailedAttemptSQL, userID, threshold, lockUntil)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("record failed attempt: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) RecordSuccessfulLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET
		failed_attempts = 0, locked_until = NULL,
		last_login_at = $2, last_activity_at = $2, updated_at = now()
	WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("record successful login: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID int64, hash string, changedAt time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET
		password_hash = $2, password_changed_at = $3, updated_at = now()
	WHERE id = $1`, userID, hash, changedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) UpdateStatus(ctx context.Context, userID int64, status string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET status = $2, updated_at = now() WHERE id = $1`, userID, status)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return nil
}

const companyColumns = `id, name, display_name, email, industry, status,
plan, plan_status, plan_started_at, plan_expires_at, max_users, max_storage_mb,
created_by, created_at, updated_at`

// PostgresCompanyRepo implements CompanyRepository on pgx.
type PostgresCompanyRepo struct {
	db *pgxpool.Pool
}

func NewPostgresCompanyRepo(pool *pgxpool.Pool) *PostgresCompanyRepo {
	return &PostgresCompanyRepo{db: pool}
}

func scanCompany(row pgx.Row) (domain.Company, error) {
	var c domain.Company
	err := row.Scan(
		&c.ID, &c.Name, &c.DisplayName, &c.Email, &c.Industry, &c.Status,
		&c.Subscription.Plan, &c.Subscription.Status,
		&c.Subscription.StartedAt, &c.Subscription.ExpiresAt,
		&c.Subscription.MaxUsers, &c.Subscription.MaxStorageMB,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

const insertCompanySQL = `INSERT INTO companies
(name, display_name, email, industry, status, plan, plan_status, plan_started_at, plan_expires_at, max_users, max_storage_mb, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + companyColumns

func (r *PostgresCompanyRepo) Create(ctx context.Context, company domain.Company) (domain.Company, error) {
	row := r.db.QueryRow(ctx, insertCompanySQL,
		company.Name, company.DisplayName, company.Email, company.Industry, company.Status,
		company.Subscription.Plan, company.Subscription.Status,
		company.Subscription.StartedAt, company.Subscription.ExpiresAt,
		company.Subscription.MaxUsers, company.Subscription.MaxStorageMB,
		company.CreatedBy,
	)
	created, err := scanCompany(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Company{}, ErrDuplicate
		}
		return domain.Company{}, fmt.Errorf("create company: %w", err)
	}
	return created, nil
}

func (r *PostgresCompanyRepo) GetByID(ctx context.Context, companyID int64) (domain.Company, error) {
	row := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, companyID)
	company, err := scanCompany(row)
	if err != nil {
		return domain.Company{}, fmt.Errorf("get company: %w", err)
	}
	return company, nil
}

func (r *PostgresCompanyRepo) GetByEmail(ctx context.Context, email string) (domain.Company, error) {
	row := r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE lower(email) = lower($1)`, email)
	company, err := scanCompany(row)
	if err != nil {
		return domain.Company{}, fmt.Errorf("get company by email: %w", err)
	}
	return company, nil
}

func (r *PostgresCompanyRepo) UpdateSubscription(ctx context.Context, companyID int64, sub domain.Subscription) error {
	_, err := r.db.Exec(ctx, `UPDATE companies SET
		plan = $2, plan_status = $3, plan_started_at = $4, plan_expires_at = $5,
		max_users = $6, max_storage_mb = $7, updated_at = now()
	WHERE id = $1`,
		companyID, sub.Plan, sub.Status, sub.StartedAt, sub.ExpiresAt, sub.MaxUsers, sub.MaxStorageMB,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

func (r *PostgresCompanyRepo) UpdateStatus(ctx context.Context, companyID int64, status, subscriptionStatus string) error {
	_, err := r.db.Exec(ctx, `UPDATE companies SET
		status = $2, plan_status = $3, updated_at = now()
	WHERE id = $1`, companyID, status, subscriptionStatus)
	if err != nil {
		return fmt.Errorf("update company status: %w", err)
	}
	return nil
}

const membershipColumns = `id, user_id, company_id, role, permissions, status,
invited_by, invited_at, joined_at, last_access_at, created_at, updated_at`

// PostgresMembershipRepo implements MembershipRepository on pgx.
type PostgresMembershipRepo struct {
	db *pgxpool.Pool
}

func NewPostgresMembershipRepo(pool *pgxpool.Pool) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: pool}
}

func scanMembership(row pgx.Row) (domain.Membership, error) {
	var m domain.Membership
	err := row.Scan(
		&m.ID, &m.UserID, &m.CompanyID, &m.Role, &m.Permissions, &m.Status,
		&m.InvitedBy, &m.InvitedAt, &m.JoinedAt, &m.LastAccessAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Membership{}, err
	}
	return m, nil
}

const insertMembershipSQL = `INSERT INTO memberships
(user_id, company_id, role, permissions, status, invited_by, invited_at, joined_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + membershipColumns

func (r *PostgresMembershipRepo) Create(ctx context.Context, m domain.Membership) (domain.Membership, error) {
	row := r.db.QueryRow(ctx, insertMembershipSQL,
		m.UserID, m.CompanyID, m.Role, m.Permissions, m.Status,
		m.InvitedBy, m.InvitedAt, m.JoinedAt,
	)
	created, err := scanMembership(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Membership{}, ErrDuplicate
		}
		return domain.Membership{}, fmt.Errorf("create membership: %w", err)
	}
	return created, nil
}

func (r *PostgresMembershipRepo) GetByUserAndCompany(ctx context.Context, userID, companyID int64) (domain.Membership, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND company_id = $2`,
		userID, companyID)
	m, err := scanMembership(row)
	if err != nil {
		return domain.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (r *PostgresMembershipRepo) GetActive(ctx context.Context, userID, companyID int64) (domain.Membership, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND company_id = $2 AND status = 'active'`,
		userID, companyID)
	m, err := scanMembership(row)
	if err != nil {
		return domain.Membership{}, fmt.Errorf("get active membership: %w", err)
	}
	return m, nil
}

func (r *PostgresMembershipRepo) ListForUser(ctx context.Context, userID int64, status string) ([]domain.Membership, error) {
	rows, err := r.db.Query(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY last_access_at DESC NULLS LAST, created_at DESC`,
		userID, status)
	if err != nil {
		return nil, fmt.Errorf("list memberships for user: %w", err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func (r *PostgresMembershipRepo) ListForCompany(ctx context.Context, companyID int64, status string) ([]domain.Membership, error) {
	rows, err := r.db.Query(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE company_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY array_position(ARRAY['owner','admin','manager','accountant','user','viewer'], role),
			joined_at ASC NULLS LAST`,
		companyID, status)
	if err != nil {
		return nil, fmt.Errorf("list memberships for company: %w", err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func collectMemberships(rows pgx.Rows) ([]domain.Membership, error) {
	var memberships []domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return memberships, nil
}

func (r *PostgresMembershipRepo) UpdateRole(ctx context.Context, membershipID int64, role string, permissions []string) error {
	_, err := r.db.Exec(ctx, `UPDATE memberships SET
		role = $2, permissions = $3, updated_at = now()
	WHERE id = $1`, membershipID, role, permissions)
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	return nil
}

func (r *PostgresMembershipRepo) UpdateStatus(ctx context.Context, membershipID int64, status string, joinedAt *time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE memberships SET
		status = $2, joined_at = COALESCE($3, joined_at), updated_at = now()
	WHERE id = $1`, membershipID, status, joinedAt)
	if err != nil {
		return fmt.Errorf("update membership status: %w", err)
	}
	return nil
}

func (r *PostgresMembershipRepo) TouchLastAccess(ctx context.Context, membershipID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE memberships SET last_access_at = $2, updated_at = now() WHERE id = $1`, membershipID, at)
	if err != nil {
		return fmt.Errorf("touch membership access: %w", err)
	}
	return nil
}
