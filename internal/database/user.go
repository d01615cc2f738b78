package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rps-arena/server/internal/auth"
	"github.com/rps-arena/server/internal/models"
)

// StartingElo is the rating assigned to every new account.
const StartingElo = 1000

// CreateUser hashes the plaintext password and inserts the row. The caller's
// struct is updated with the generated id and hash.
func CreateUser(ctx context.Context, user *models.User) error {
	hash, err := auth.CreateHash(user.Password, auth.Params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Elo == 0 {
		user.Elo = StartingElo
	}

	q := `
		INSERT INTO users (id, email, password, name, elo, wins, losses, draws)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 0)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, user.ID, user.Email, user.Password, user.Name, user.Elo)
		return err
	})
}

// AuthenticateUser verifies the email/password pair and returns a signed JWT.
func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	var u models.User
	q := `SELECT id, password FROM users WHERE email = $1`
	if err := DB.QueryRow(ctx, q, email).Scan(&u.ID, &u.Password); err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := auth.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		return "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(u.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create JWT: %w", err)
	}
	return token, nil
}

// GetUserByID fetches one user row including match statistics.
func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `SELECT id, COALESCE(email, ''), name, elo, wins, losses, draws FROM users WHERE id = $1`
	err := DB.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Name, &u.Elo, &u.Wins, &u.Losses, &u.Draws)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, err)
	}
	return &u, nil
}

// UpdateUserName changes a user's display name.
func UpdateUserName(ctx context.Context, id uuid.UUID, name string) error {
	q := `UPDATE users SET name = $1 WHERE id = $2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, name, id)
		return err
	})
}

// Leaderboard returns the top rated users, ties broken by win count.
func Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 25
	}
	q := `
		SELECT id, name, elo, wins, losses, draws
		FROM users
		ORDER BY elo DESC, wins DESC
		LIMIT $1
	`
	rows, err := DB.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Elo, &u.Wins, &u.Losses, &u.Draws); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
