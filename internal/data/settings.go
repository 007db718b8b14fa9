package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// settingsRepo implements the Settings repository on SQLite
type settingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo opens (or creates) the settings database
func NewSettingsRepo(dbPath string) (repo.SettingsRepo, error) {
	return openSettingsRepo(dbPath)
}

func openSettingsRepo(dbPath string) (*settingsRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps the delete-and-insert rewrite atomic under SQLite locking
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS operators (
			id INTEGER PRIMARY KEY,
			chat_id TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			operator_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			token TEXT NOT NULL,
			trigger_words TEXT NOT NULL DEFAULT '[]',
			forward_all INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (operator_id, name)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &settingsRepo{db: db}, nil
}

// LoadAll reads every operator with their accounts, ordered by operator ID
func (r *settingsRepo) LoadAll(ctx context.Context) ([]*domain.Operator, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, chat_id FROM operators ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query operators: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*domain.Operator)
	var ops []*domain.Operator
	for rows.Next() {
		op := &domain.Operator{Accounts: make(map[string]*domain.Account)}
		if err := rows.Scan(&op.ID, &op.ChatID); err != nil {
			return nil, err
		}
		byID[op.ID] = op
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	accRows, err := r.db.QueryContext(ctx, `
		SELECT operator_id, name, token, trigger_words, forward_all, updated_at
		FROM accounts
		ORDER BY operator_id, name
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer accRows.Close()

	for accRows.Next() {
		var (
			acc        domain.Account
			wordsJSON  string
			forwardAll int
			updatedAt  int64
		)
		if err := accRows.Scan(&acc.Key.OperatorID, &acc.Key.AccountName, &acc.Token, &wordsJSON, &forwardAll, &updatedAt); err != nil {
			return nil, err
		}

		var words []string
		if err := json.Unmarshal([]byte(wordsJSON), &words); err != nil {
			fmt.Printf("[Settings] Ignoring bad trigger words for %s: %v\n", acc.Key, err)
		}
		acc.Triggers = domain.NewTriggerSet(words...)
		acc.ForwardAll = forwardAll != 0
		acc.UpdatedAt = time.Unix(updatedAt, 0)

		op, ok := byID[acc.Key.OperatorID]
		if !ok {
			op = &domain.Operator{ID: acc.Key.OperatorID, Accounts: make(map[string]*domain.Account)}
			byID[op.ID] = op
			ops = append(ops, op)
		}
		op.Accounts[acc.Key.AccountName] = &acc
	}
	return ops, accRows.Err()
}

// SaveAll replaces everything stored with operators in one transaction
func (r *settingsRepo) SaveAll(ctx context.Context, operators []*domain.Operator) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM operators`); err != nil {
		return fmt.Errorf("clear operators: %w", err)
	}

	for _, op := range operators {
		if _, err := tx.ExecContext(ctx, `INSERT INTO operators (id, chat_id) VALUES (?, ?)`, op.ID, op.ChatID); err != nil {
			return fmt.Errorf("insert operator %d: %w", op.ID, err)
		}
		for _, acc := range op.Accounts {
			words, err := json.Marshal(acc.Triggers.Added())
			if err != nil {
				return err
			}
			forwardAll := 0
			if acc.ForwardAll {
				forwardAll = 1
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO accounts (operator_id, name, token, trigger_words, forward_all, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, op.ID, acc.Key.AccountName, acc.Token, string(words), forwardAll, acc.UpdatedAt.Unix())
			if err != nil {
				return fmt.Errorf("insert account %s: %w", acc.Key, err)
			}
		}
	}

	return tx.Commit()
}

// Close closes the database connection
func (r *settingsRepo) Close() error {
	return r.db.Close()
}
