package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a user with the same email already exists.
	ErrDuplicateEmail = errors.New("email already taken")
)

type Store interface {
	CreateUser(name, email, passwordHash string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByID(id int64) (User, error)

	CreateToken(t Token) error
	GetUserByToken(token string) (User, error)
	DeleteUserTokens(userID int64) error

	CreateExpense(e Expense) (Expense, error)
	GetExpense(id int64) (Expense, error)
	ListExpenses(userID int64, limit, offset int) ([]Expense, int, error)
	UpdateExpense(e Expense) (Expense, error)
	DeleteExpense(id int64) error
}

// a pgx pool allows the app to reuse and efficiently manage a set of connections to the database,
// rather than opening and closing a new connection for every query.
type PostgresStore struct {
	conn *pgxpool.Pool
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	conn, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &PostgresStore{conn: conn}, nil
}

func (p *PostgresStore) Close() {
	p.conn.Close()
}

// Migrate creates the schema if it is not there yet.
func (p *PostgresStore) Migrate() error {
	_, err := p.conn.Exec(context.Background(), `
        CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            name VARCHAR(191) NOT NULL,
            email VARCHAR(191) UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        CREATE TABLE IF NOT EXISTS tokens (
            token TEXT PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        CREATE TABLE IF NOT EXISTS expenses (
            id BIGSERIAL PRIMARY KEY,
            description VARCHAR(191) NOT NULL,
            date DATE NOT NULL,
            value BIGINT NOT NULL CHECK (value >= 0),
            user_id BIGINT NOT NULL REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (p *PostgresStore) CreateUser(name, email, passwordHash string) (User, error) {
	query := `
        INSERT INTO users (name, email, password_hash)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at;
    `

	u := User{Name: name, Email: email, PasswordHash: passwordHash}
	err := p.conn.QueryRow(context.Background(), query, name, email, passwordHash).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (p *PostgresStore) GetUserByEmail(email string) (User, error) {
	var u User
	query := `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = $1`
	err := p.conn.QueryRow(context.Background(), query, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to look up user by email: %w", err)
	}
	return u, nil
}

func (p *PostgresStore) GetUserByID(id int64) (User, error) {
	var u User
	query := `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = $1`
	err := p.conn.QueryRow(context.Background(), query, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to look up user %d: %w", id, err)
	}
	return u, nil
}

func (p *PostgresStore) CreateToken(t Token) error {
	query := `INSERT INTO tokens (token, user_id) VALUES ($1, $2)`
	_, err := p.conn.Exec(context.Background(), query, t.Token, t.UserID)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetUserByToken(token string) (User, error) {
	var u User
	query := `
        SELECT u.id, u.name, u.email, u.password_hash, u.created_at, u.updated_at
        FROM tokens t
        JOIN users u ON u.id = t.user_id
        WHERE t.token = $1;
    `
	err := p.conn.QueryRow(context.Background(), query, token).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to resolve token: %w", err)
	}
	return u, nil
}

// DeleteUserTokens removes every token issued to the user, logging them out
// of all devices at once.
func (p *PostgresStore) DeleteUserTokens(userID int64) error {
	query := `DELETE FROM tokens WHERE user_id = $1`
	_, err := p.conn.Exec(context.Background(), query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete tokens for user %d: %w", userID, err)
	}
	return nil
}

func (p *PostgresStore) CreateExpense(e Expense) (Expense, error) {
	query := `
        INSERT INTO expenses (description, date, value, user_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at;
    `

	// QueryRow is used to execute the SQL statement and retrieve the generated columns.
	err := p.conn.QueryRow(context.Background(), query, e.Description, e.Date, e.Value, e.UserID).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Expense{}, fmt.Errorf("failed to create expense: %w", err)
	}

	return e, nil
}

func (p *PostgresStore) GetExpense(id int64) (Expense, error) {
	var e Expense
	query := `
        SELECT id, description, date, value, user_id, created_at, updated_at
        FROM expenses
        WHERE id = $1;
    `
	err := p.conn.QueryRow(context.Background(), query, id).
		Scan(&e.ID, &e.Description, &e.Date, &e.Value, &e.UserID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, ErrNotFound
		}
		return Expense{}, fmt.Errorf("failed to get expense %d: %w", id, err)
	}
	return e, nil
}

// ListExpenses returns one page of the user's expenses, newest first, along
// with the total number of records the user owns.
func (p *PostgresStore) ListExpenses(userID int64, limit, offset int) ([]Expense, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM expenses WHERE user_id = $1`
	if err := p.conn.QueryRow(context.Background(), countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses for user %d: %w", userID, err)
	}

	query := `
        SELECT id, description, date, value, user_id, created_at, updated_at
        FROM expenses
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3;
    `

	rows, err := p.conn.Query(context.Background(), query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses for user %d: %w", userID, err)
	}
	defer rows.Close()

	expenses := []Expense{}
	for rows.Next() {
		var e Expense
		err := rows.Scan(&e.ID, &e.Description, &e.Date, &e.Value, &e.UserID, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}

	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return expenses, total, nil
}

func (p *PostgresStore) UpdateExpense(e Expense) (Expense, error) {
	query := `
        UPDATE expenses
        SET description = $1, date = $2, value = $3, updated_at = now()
        WHERE id = $4
        RETURNING user_id, created_at, updated_at;
    `

	err := p.conn.QueryRow(context.Background(), query, e.Description, e.Date, e.Value, e.ID).
		Scan(&e.UserID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, ErrNotFound
		}
		return Expense{}, fmt.Errorf("failed to update expense %d: %w", e.ID, err)
	}

	return e, nil
}

func (p *PostgresStore) DeleteExpense(id int64) error {
	query := `
        DELETE FROM expenses
        WHERE id = $1;
    `

	result, err := p.conn.Exec(context.Background(), query, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
