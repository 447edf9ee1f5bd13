package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
)

// UserStore is the credential store consumed by the Authenticator.
type UserStore interface {
	FindByEmail(email string) (*db.User, error)
	FindByID(id int) (*db.User, error)
	Insert(user *db.User) (int, error)
	UpdatePasswordHash(id int, hash string) error
	SetActive(id int, active bool) error
	List() ([]db.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(database *sql.DB) UserStore {
	return &userRepository{db: database}
}

func (r *userRepository) FindByEmail(email string) (*db.User, error) {
	var u db.User
	err := r.db.QueryRow(`
		SELECT id, name, email, phone, password_hash, department, role, active, created_at, updated_at
		FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Department, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying user by email: %w", err)
	}
	return &u, nil
}

func (r *userRepository) FindByID(id int) (*db.User, error) {
	var u db.User
	err := r.db.QueryRow(`
		SELECT id, name, email, phone, password_hash, department, role, active, created_at, updated_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Department, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "user %d not found", id)
		}
		return nil, fmt.Errorf("error querying user by id: %w", err)
	}
	return &u, nil
}

func (r *userRepository) Insert(user *db.User) (int, error) {
	query := `
		INSERT INTO users (name, email, phone, password_hash, department, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id`
	var id int
	err := r.db.QueryRow(query, user.Name, user.Email, user.Phone, user.PasswordHash, user.Department, user.Role, user.Active).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error inserting user: %w", err)
	}
	return id, nil
}

func (r *userRepository) UpdatePasswordHash(id int, hash string) error {
	result, err := r.db.Exec(`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("error updating password hash: %w", err)
	}
	return requireRow(result, "user", id)
}

func (r *userRepository) SetActive(id int, active bool) error {
	result, err := r.db.Exec(`UPDATE users SET active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("error updating user active flag: %w", err)
	}
	return requireRow(result, "user", id)
}

func (r *userRepository) List() ([]db.User, error) {
	rows, err := r.db.Query(`
		SELECT id, name, email, phone, password_hash, department, role, active, created_at, updated_at
		FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	var users []db.User
	for rows.Next() {
		var u db.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Department, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func requireRow(result sql.Result, entity string, id int) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.New(apperrors.KindNotFound, "%s %d not found", entity, id)
	}
	return nil
}
