package leads

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/pkg/errors"
	postgresqlreservedwords "github.com/rstudio/postgresql-reserved-words"
)

var errInvalidSchemaName = errors.New("invalid postgres schema name")

// NOTE: stricter than what postgres accepts for unquoted identifiers.
var schemaNameRE = regexp.MustCompile("^[a-z][a-z0-9_]{2,62}$")

// ValidateSchemaName rejects reserved words and anything that would need
// quoting.
func ValidateSchemaName(name string) error {
	if postgresqlreservedwords.IsReserved(name) {
		return errors.Wrapf(errInvalidSchemaName, "%q is a reserved word", name)
	}
	if !schemaNameRE.MatchString(name) {
		return errors.Wrap(errInvalidSchemaName, name)
	}
	return nil
}

func openPostgres(ctx context.Context, dsn, schema string, log *slog.Logger) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres requires DATABASE_URL")
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse DATABASE_URL")
	}
	cfg.Tracer = &tracelog.TraceLog{
		Logger:   newPgxLogr(logr.FromSlogHandler(log.Handler())),
		LogLevel: tracelog.LogLevelDebug,
	}
	if schema != "" {
		if err := ValidateSchemaName(schema); err != nil {
			return nil, err
		}
		cfg.RuntimeParams["search_path"] = schema
	}

	db := stdlib.OpenDB(*cfg)
	if schema != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "create schema %s", schema)
		}
	}
	return db, nil
}

func newPgxLogr(l logr.Logger) *pgxLogr {
	return &pgxLogr{l: l}
}

// pgxLogr forwards pgx trace output to a logr.Logger. Errors are logged as
// errors; everything else at V(1).
type pgxLogr struct {
	l logr.Logger
}

func (pl *pgxLogr) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	values := make([]any, 0, 2*len(data))
	for k, v := range data {
		if k == "err" {
			continue
		}
		values = append(values, k, v)
	}
	log := pl.l.WithValues(values...)

	if level == tracelog.LogLevelError {
		err, _ := data["err"].(error)
		log.Error(err, msg)
		return
	}
	log.V(1).Info(msg, "pgx_level", level.String())
}
