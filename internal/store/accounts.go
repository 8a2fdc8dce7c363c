package store

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Account is a row of the accounts table.
type Account struct {
	Username     string  `db:"username"`
	PasswordHash string  `db:"password_hash"`
	CreatedAt    float64 `db:"created_at"`
}

// CreateAccount stores a new account with a bcrypt-hashed verifier. Returns
// false (not an error) when the username already exists, per spec §4.1.
func (s *Store) CreateAccount(ctx context.Context, username, password string) (bool, error) {
	exists, err := s.UserExists(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("store: hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, string(hash), nowSeconds())
	if err != nil {
		return false, fmt.Errorf("store: create account %s: %w", username, err)
	}
	return true, nil
}

// CreateReplicatedAccount is used by followers applying REPLICATE_ACCOUNT
// (§4.2): the account is created with an empty verifier, and "already
// exists" counts as success.
func (s *Store) CreateReplicatedAccount(ctx context.Context, username string) (bool, error) {
	exists, err := s.UserExists(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, created_at) VALUES (?, '', ?)`,
		username, nowSeconds())
	if err != nil {
		return false, fmt.Errorf("store: create replicated account %s: %w", username, err)
	}
	return true, nil
}

func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM accounts WHERE username = ?`, username)
	if err != nil {
		return false, fmt.Errorf("store: user_exists %s: %w", username, err)
	}
	return n > 0, nil
}

// VerifyLogin checks a password against the stored bcrypt verifier.
// Constant-time by construction (bcrypt.CompareHashAndPassword). Not
// currently called by Login (see SPEC_FULL.md resolved open questions);
// kept for completeness and exercised by CreateAccount's verifier format.
func (s *Store) VerifyLogin(ctx context.Context, username, password string) (bool, error) {
	var hash string
	err := s.db.GetContext(ctx, &hash, `SELECT password_hash FROM accounts WHERE username = ?`, username)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: verify_login %s: %w", username, err)
	}
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// DeleteAccount removes the account and all messages mentioning it as
// sender or recipient (spec §3 cascade).
func (s *Store) DeleteAccount(ctx context.Context, username string) (bool, error) {
	exists, err := s.UserExists(ctx, username)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: delete_account %s: begin: %w", username, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE sender = ? OR recipient = ?`, username, username); err != nil {
		return false, fmt.Errorf("store: delete_account %s: messages: %w", username, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_preferences WHERE username = ? OR partner = ?`, username, username); err != nil {
		return false, fmt.Errorf("store: delete_account %s: prefs: %w", username, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE username = ?`, username); err != nil {
		return false, fmt.Errorf("store: delete_account %s: account: %w", username, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: delete_account %s: commit: %w", username, err)
	}
	return true, nil
}

// AccountPage is the result of ListAccounts.
type AccountPage struct {
	Users   []string
	Total   int32
	Page    int32
	PerPage int32
}

const defaultAccountsPerPage = 10

// ListAccounts does a SQL LIKE substring match on username, ordered
// stably by username, 1-based pagination, per spec §4.1.
func (s *Store) ListAccounts(ctx context.Context, pattern string, page int32) (AccountPage, error) {
	if page < 1 {
		page = 1
	}
	perPage := int32(defaultAccountsPerPage)
	like := "%" + pattern + "%"

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM accounts WHERE username LIKE ?`, like); err != nil {
		return AccountPage{}, fmt.Errorf("store: list_accounts count: %w", err)
	}

	var users []string
	err := s.db.SelectContext(ctx, &users,
		`SELECT username FROM accounts WHERE username LIKE ? ORDER BY username LIMIT ? OFFSET ?`,
		like, perPage, (page-1)*perPage)
	if err != nil {
		return AccountPage{}, fmt.Errorf("store: list_accounts select: %w", err)
	}

	return AccountPage{Users: users, Total: int32(total), Page: page, PerPage: perPage}, nil
}
