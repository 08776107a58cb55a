package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digitalguyco/convade-backend/core"
	"github.com/Digitalguyco/convade-backend/core/user"
)

type userRow struct {
	ID                     string      `db:"id"`
	Email                  string      `db:"email"`
	PasswordHash           []byte      `db:"password_hash"`
	FirstName              string      `db:"first_name"`
	LastName               string      `db:"last_name"`
	Role                   string      `db:"role"`
	Status                 string      `db:"status"`
	SchoolID               null.String `db:"school_id"`
	GradeLevel             string      `db:"grade_level"`
	Department             string      `db:"department"`
	PhoneNumber            string      `db:"phone_number"`
	Bio                    string      `db:"bio"`
	EmailNotifications     bool        `db:"email_notifications"`
	IsEmailVerified        bool        `db:"is_email_verified"`
	EmailVerificationToken string      `db:"email_verification_token"`
	LastLogin              null.Time   `db:"last_login"`
	LastActivity           null.Time   `db:"last_activity"`
	CreatedAt              time.Time   `db:"created_at"`
	UpdatedAt              time.Time   `db:"updated_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:                     r.ID,
		Email:                  r.Email,
		PasswordHash:           r.PasswordHash,
		FirstName:              r.FirstName,
		LastName:               r.LastName,
		Role:                   r.Role,
		Status:                 r.Status,
		SchoolID:               r.SchoolID.String,
		GradeLevel:             r.GradeLevel,
		Department:             r.Department,
		PhoneNumber:            r.PhoneNumber,
		Bio:                    r.Bio,
		EmailNotifications:     r.EmailNotifications,
		IsEmailVerified:        r.IsEmailVerified,
		EmailVerificationToken: r.EmailVerificationToken,
		LastLogin:              fromNullTime(r.LastLogin),
		LastActivity:           fromNullTime(r.LastActivity),
		CreatedAt:              r.CreatedAt.UTC(),
		UpdatedAt:              r.UpdatedAt.UTC(),
	}
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:                     usr.ID,
		Email:                  usr.Email,
		PasswordHash:           usr.PasswordHash,
		FirstName:              usr.FirstName,
		LastName:               usr.LastName,
		Role:                   usr.Role,
		Status:                 usr.Status,
		SchoolID:               nullString(usr.SchoolID),
		GradeLevel:             usr.GradeLevel,
		Department:             usr.Department,
		PhoneNumber:            usr.PhoneNumber,
		Bio:                    usr.Bio,
		EmailNotifications:     usr.EmailNotifications,
		IsEmailVerified:        usr.IsEmailVerified,
		EmailVerificationToken: usr.EmailVerificationToken,
		LastLogin:              nullTime(usr.LastLogin),
		LastActivity:           nullTime(usr.LastActivity),
		CreatedAt:              usr.CreatedAt,
		UpdatedAt:              usr.UpdatedAt,
	}
}

const userColumns = `id, email, password_hash, first_name, last_name, role, status, school_id,
	grade_level, department, phone_number, bio, email_notifications, is_email_verified,
	email_verification_token, last_login, last_activity, created_at, updated_at`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := `SELECT COUNT(*) FROM users WHERE email = $1`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		q += ` AND NOT (id = ANY($2))`
		args = append(args, stringArray(ids))
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, q, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	row := newUserRow(usr)
	q := `INSERT INTO users (` + userColumns + `) VALUES (
		:id, :email, :password_hash, :first_name, :last_name, :role, :status, :school_id,
		:grade_level, :department, :phone_number, :bio, :email_notifications, :is_email_verified,
		:email_verification_token, :last_login, :last_activity, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(first_name ILIKE %[1]s OR last_name ILIKE %[1]s OR email ILIKE %[1]s)", p))
		}
		if filter.Role != "" {
			conds = append(conds, "role = "+arg(filter.Role))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+arg(filter.Status))
		}
		if filter.SchoolID != "" {
			conds = append(conds, "school_id = "+arg(filter.SchoolID))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "created_at >= "+arg(filter.CreatedFrom))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "created_at <= "+arg(filter.CreatedTo))
		}
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, "created_at DESC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toDomain(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := repo.db.GetContext(ctx, &row, q, email); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by email")
	}
	return row.toDomain(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := newUserRow(usr)
	q := `UPDATE users SET
		email = :email, password_hash = :password_hash, first_name = :first_name,
		last_name = :last_name, role = :role, status = :status, school_id = :school_id,
		grade_level = :grade_level, department = :department, phone_number = :phone_number,
		bio = :bio, email_notifications = :email_notifications,
		is_email_verified = :is_email_verified,
		email_verification_token = :email_verification_token,
		last_login = :last_login, last_activity = :last_activity, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	updated, err := repo.UpdateUser(ctx, usr)
	if errors.Cause(err) == user.ErrNotFound {
		return repo.CreateUser(ctx, usr)
	}
	return updated, err
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *userRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}
