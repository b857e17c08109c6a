package aggregate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

type StoreConfig struct {
	DSN string `split_words:"true" required:"true"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	SessionID string    `bun:"session_id,pk"`
	Text      string    `bun:"text"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type contactRow struct {
	bun.BaseModel `bun:"table:contacts,alias:c"`

	ID              int64     `bun:"id,pk,autoincrement"`
	SessionID       string    `bun:"session_id,notnull"`
	DedupKey        string    `bun:"dedup_key,notnull"`
	ContactName     string    `bun:"contact_name"`
	Email           string    `bun:"email"`
	EmailConfidence string    `bun:"email_confidence"`
	Company         string    `bun:"company"`
	Title           string    `bun:"title"`
	LinkedinURL     string    `bun:"linkedin_url"`
	Location        string    `bun:"location"`
	Source          string    `bun:"source"`
	FitScore        float64   `bun:"fit_score"`
	FitReason       string    `bun:"fit_reason"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Store persists session artifacts to Postgres. Persist is idempotent per
// session id: re-running a session replaces its rows instead of appending.
type Store struct {
	db *bun.DB
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: store dsn is required", contractx.ErrValidation)
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	return &Store{db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// Init creates the schema. Safe to call on every startup.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*sessionRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*contactRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create contacts table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().Model((*contactRow)(nil)).
		Index("contacts_session_dedup_idx").Unique().IfNotExists().
		Column("session_id", "dedup_key").Exec(ctx); err != nil {
		return fmt.Errorf("create contacts index: %w", err)
	}
	return nil
}

func (s *Store) Persist(ctx context.Context, sessionID string, artifact contractx.Artifact) error {
	rows := make([]contactRow, 0, len(artifact.Contacts))
	for _, c := range artifact.Contacts {
		rows = append(rows, contactRow{
			SessionID:       sessionID,
			DedupKey:        c.DedupKey(),
			ContactName:     c.ContactName,
			Email:           c.Email,
			EmailConfidence: string(c.EmailConfidence),
			Company:         c.Company,
			Title:           c.Title,
			LinkedinURL:     c.LinkedinURL,
			Location:        c.Location,
			Source:          c.Source,
			FitScore:        c.FitScore,
			FitReason:       c.FitReason,
		})
	}

	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		session := &sessionRow{SessionID: sessionID, Text: artifact.Text}
		if _, err := tx.NewInsert().Model(session).
			On("CONFLICT (session_id) DO UPDATE").
			Set("text = EXCLUDED.text").Exec(ctx); err != nil {
			return fmt.Errorf("upsert session %s: %w", sessionID, err)
		}
		if _, err := tx.NewDelete().Model((*contactRow)(nil)).
			Where("session_id = ?", sessionID).Exec(ctx); err != nil {
			return fmt.Errorf("clear contacts for session %s: %w", sessionID, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert contacts for session %s: %w", sessionID, err)
		}
		return nil
	})
}

// Contacts loads a session's persisted contacts, ranked as stored.
func (s *Store) Contacts(ctx context.Context, sessionID string) ([]contractx.Contact, error) {
	var rows []contactRow
	if err := s.db.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		Order("fit_score DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load contacts for session %s: %w", sessionID, err)
	}
	contacts := make([]contractx.Contact, 0, len(rows))
	for _, r := range rows {
		contacts = append(contacts, contractx.Contact{
			ContactName:     r.ContactName,
			Email:           r.Email,
			EmailConfidence: contractx.ConfidenceLevel(r.EmailConfidence),
			Company:         r.Company,
			Title:           r.Title,
			LinkedinURL:     r.LinkedinURL,
			Location:        r.Location,
			Source:          r.Source,
			FitScore:        r.FitScore,
			FitReason:       r.FitReason,
		})
	}
	return contacts, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
