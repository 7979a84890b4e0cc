package leads

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) migrationsDir() string {
	if d == dialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for postgres.
func (d dialect) rebind(q string) string {
	if d != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var errUnknownDriver = errors.New("unknown database driver")

// Options selects and configures the database behind a SQLStore.
type Options struct {
	Driver string // "sqlite" or "pgx"
	DSN    string
	// Schema places the postgres tables in a dedicated schema. Ignored for
	// sqlite.
	Schema string
	Logger *slog.Logger
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	log     *slog.Logger
	now     func() time.Time
}

// Open connects, pings and migrates the configured database.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "leads", "driver", opts.Driver)

	var (
		db  *sql.DB
		d   dialect
		err error
	)
	switch opts.Driver {
	case "sqlite", "":
		d = dialectSQLite
		db, err = openSQLite(ctx, opts.DSN)
	case "pgx", "postgres":
		d = dialectPostgres
		db, err = openPostgres(ctx, opts.DSN, opts.Schema, log)
	default:
		return nil, errors.Wrap(errUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, dialect: d, log: log, now: time.Now}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db, d, log); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	log.Info("lead store ready")
	return s, nil
}

func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = "file:chatfunnel.db"
	}
	if !strings.Contains(dsn, "busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "enable WAL")
	}
	return db, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "ping database")
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = s.now()
	}
	*createdAt = createdAt.UTC().Truncate(time.Millisecond)
}

func (s *SQLStore) CreateConsultation(ctx context.Context, c *Consultation) error {
	s.stamp(&c.ID, &c.CreatedAt)
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`INSERT INTO consultations
		(id, company_name, contact_name, email, phone, privacy_consent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.CompanyName, c.ContactName, c.Email, c.Phone, c.PrivacyConsent, c.CreatedAt.UnixMilli())
	return errors.Wrap(err, "insert consultation")
}

func (s *SQLStore) ListConsultations(ctx context.Context) ([]Consultation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, company_name, contact_name, email, phone, privacy_consent, created_at
		FROM consultations ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "list consultations")
	}
	defer func() { _ = rows.Close() }()

	out := []Consultation{}
	for rows.Next() {
		var (
			c  Consultation
			ms int64
		)
		if err := rows.Scan(&c.ID, &c.CompanyName, &c.ContactName, &c.Email, &c.Phone, &c.PrivacyConsent, &ms); err != nil {
			return nil, errors.Wrap(err, "scan consultation")
		}
		c.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "iterate consultations")
}

func (s *SQLStore) CreateHospitalLead(ctx context.Context, l *HospitalLead) error {
	s.stamp(&l.ID, &l.CreatedAt)
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`INSERT INTO hospital_leads
		(id, hospital_name, contact_name, phone, email, privacy_consent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		l.ID, l.HospitalName, l.ContactName, l.Phone, l.Email, l.PrivacyConsent, l.CreatedAt.UnixMilli())
	return errors.Wrap(err, "insert hospital lead")
}

func (s *SQLStore) ListHospitalLeads(ctx context.Context) ([]HospitalLead, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, hospital_name, contact_name, phone, email, privacy_consent, created_at
		FROM hospital_leads ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "list hospital leads")
	}
	defer func() { _ = rows.Close() }()

	out := []HospitalLead{}
	for rows.Next() {
		var (
			l  HospitalLead
			ms int64
		)
		if err := rows.Scan(&l.ID, &l.HospitalName, &l.ContactName, &l.Phone, &l.Email, &l.PrivacyConsent, &ms); err != nil {
			return nil, errors.Wrap(err, "scan hospital lead")
		}
		l.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, l)
	}
	return out, errors.Wrap(rows.Err(), "iterate hospital leads")
}
