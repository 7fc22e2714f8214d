// Package store persists the reactor's own bookkeeping: dashboard users
// and agent API keys. This is service metadata, unrelated to the databases
// reads are executed against.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	db *sql.DB
}

type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) InitSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			key_hash VARCHAR(255) NOT NULL UNIQUE,
			key_prefix VARCHAR(10) NOT NULL,
			type ENUM('live', 'test') NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_used_at TIMESTAMP NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			slog.Warn("Migration query issue (might be expected)", "error", err)
		}
	}
	return nil
}

func (s *Store) CreateUser(email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("INSERT INTO users (email, password_hash) VALUES (?, ?)", email, string(hash))
	return err
}

func (s *Store) AuthenticateUser(email, password string) (*User, error) {
	var user User
	var hash string

	err := s.db.QueryRow("SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Email, &hash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invalid credentials")
	} else if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return &user, nil
}

type APIKey struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	KeyPrefix string    `json:"key_prefix"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAPIKey mints an agent key (sk_live_... / sk_test_...). Only the
// bcrypt hash and a lookup prefix are stored.
func (s *Store) CreateAPIKey(userID int, keyType string) (string, error) {
	suffix := fmt.Sprintf("%d_%d", userID, time.Now().UnixNano())
	rawKey := fmt.Sprintf("sk_%s_%s", keyType, suffix)

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(
		"INSERT INTO api_keys (user_id, key_hash, key_prefix, type) VALUES (?, ?, ?, ?)",
		userID, string(hash), rawKey[:10], keyType,
	)
	if err != nil {
		return "", err
	}
	return rawKey, nil
}

// VerifyAPIKey resolves a raw key by its prefix and checks the hash.
func (s *Store) VerifyAPIKey(rawKey string) (*APIKey, error) {
	prefix := rawKey
	if len(rawKey) > 10 {
		prefix = rawKey[:10]
	}

	rows, err := s.db.Query("SELECT id, user_id, key_hash, key_prefix, type, created_at FROM api_keys WHERE key_prefix = ?", prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var k APIKey
		var hash string
		if err := rows.Scan(&k.ID, &k.UserID, &hash, &k.KeyPrefix, &k.Type, &k.CreatedAt); err != nil {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)); err == nil {
			go s.db.Exec("UPDATE api_keys SET last_used_at = NOW() WHERE id = ?", k.ID)
			return &k, nil
		}
	}
	return nil, fmt.Errorf("invalid api key")
}

func (s *Store) ListAPIKeys(userID int) ([]APIKey, error) {
	query := "SELECT id, user_id, key_prefix, type, created_at FROM api_keys WHERE user_id = ? ORDER BY created_at DESC"
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.KeyPrefix, &k.Type, &k.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
