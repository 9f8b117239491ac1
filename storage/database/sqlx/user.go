package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/zenabi/tuzo/core"
	"github.com/zenabi/tuzo/core/user"
)

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	Wallet       int       `db:"wallet"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		Wallet:       r.Wallet,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapUserNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapUserNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO "user" (id, name, email, role, wallet, is_active, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		usr.ID, usr.Name, usr.Email, usr.Role, usr.Wallet, usr.IsActive, usr.PasswordHash,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, id); err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user by ID")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE LOWER(email) = LOWER($1)`, email); err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user by email")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	query := `SELECT * FROM "user"`
	var clauses []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return "$" + itoa(len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			clauses = append(clauses, "(name ILIKE "+arg(val)+" OR email ILIKE "+arg(val)+")")
		}
		if filter.Role != "" {
			clauses = append(clauses, "role = "+arg(filter.Role))
		}
		if filter.IsActive != nil {
			clauses = append(clauses, "is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			clauses = append(clauses, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			clauses = append(clauses, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += orderByClause(ordering, "created_at DESC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo userRepository) CountUsers(ctx context.Context, role string) (int, error) {
	query := `SELECT COUNT(*) FROM "user"`
	var args []interface{}
	if role != "" {
		query += " WHERE role = $1"
		args = append(args, role)
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	sets := []string{"updated_at = $2"}
	args := []interface{}{usr.ID, usr.UpdatedAt.UTC()}

	set := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, col+" = $"+itoa(len(args)))
	}

	if usr.Name != "" {
		set("name", usr.Name)
	}
	if usr.Email != "" {
		set("email", usr.Email)
	}
	if len(usr.PasswordHash) > 0 {
		set("password_hash", usr.PasswordHash)
	}
	if isActive != nil {
		set("is_active", *isActive)
	}

	query := `UPDATE "user" SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING *`
	var row userRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return user.User{}, trapUserNoRowsErr(err, "updating user")
	}
	return row.user(), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
