package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/stoneage-tools/ap-inbox/internal/model"
)

// SQLiteLedger implements Ledger using modernc.org/sqlite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "ledger: exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS processed_messages (
	message_id          TEXT PRIMARY KEY,
	internet_message_id TEXT NOT NULL DEFAULT '',
	subject             TEXT NOT NULL DEFAULT '',
	sender_email        TEXT NOT NULL DEFAULT '',
	category            TEXT NOT NULL,
	result              TEXT NOT NULL,
	processed_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processed_internet_id ON processed_messages(internet_message_id);
CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_messages(processed_at);
`

func (l *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "ledger: migrate")
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) Has(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_messages WHERE message_id = ?`,
		messageID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrapf(err, "ledger: has %s", messageID)
	}
	return true, nil
}

func (l *SQLiteLedger) Put(ctx context.Context, result *model.ProcessingResult) error {
	if result.ProcessedAt.IsZero() {
		result.ProcessedAt = time.Now().UTC()
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "ledger: marshal result")
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO processed_messages
		   (message_id, internet_message_id, subject, sender_email, category, result, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(message_id) DO UPDATE SET
		   internet_message_id = excluded.internet_message_id,
		   subject             = excluded.subject,
		   sender_email        = excluded.sender_email,
		   category            = excluded.category,
		   result              = excluded.result,
		   processed_at        = excluded.processed_at`,
		result.MessageID, result.InternetMessageID, result.Subject,
		result.SenderEmail, string(result.Category), string(resultJSON),
		result.ProcessedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: put %s", result.MessageID)
	}
	return nil
}

func (l *SQLiteLedger) Get(ctx context.Context, messageID string) (*model.ProcessingResult, error) {
	return l.getWhere(ctx, `message_id = ?`, messageID)
}

func (l *SQLiteLedger) Find(ctx context.Context, id string) (*model.ProcessingResult, error) {
	if result, err := l.Get(ctx, id); err != nil || result != nil {
		return result, err
	}
	// RFC 5322 message IDs are stored with their angle brackets, but
	// callers often pass them bare.
	return l.getWhere(ctx, `internet_message_id IN (?, ?)`, id, "<"+id+">")
}

func (l *SQLiteLedger) getWhere(ctx context.Context, where string, args ...any) (*model.ProcessingResult, error) {
	var resultJSON string
	err := l.db.QueryRowContext(ctx,
		`SELECT result FROM processed_messages WHERE `+where+` LIMIT 1`,
		args...,
	).Scan(&resultJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "ledger: get")
	}

	var result model.ProcessingResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, eris.Wrap(err, "ledger: unmarshal result")
	}
	return &result, nil
}

func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]*model.ProcessingResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT result FROM processed_messages ORDER BY processed_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: recent")
	}
	defer rows.Close()

	var results []*model.ProcessingResult
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "ledger: scan result")
		}
		var result model.ProcessingResult
		if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
			return nil, eris.Wrap(err, "ledger: unmarshal result")
		}
		results = append(results, &result)
	}
	return results, eris.Wrap(rows.Err(), "ledger: iterate results")
}
