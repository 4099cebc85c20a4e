package directory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory resolves identities from a users table with the columns
// id, tenancy, email and phone. The pool is owned by the caller.
type PostgresDirectory struct {
	db     rowQuerier
	schema string
	table  string
	query  string
}

// PostgresOption configures a PostgresDirectory.
type PostgresOption func(*PostgresDirectory) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the users table (default "public").
func WithSchema(schema string) PostgresOption {
	return func(d *PostgresDirectory) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("directory: invalid schema identifier %q", schema)
		}
		d.schema = schema
		return nil
	}
}

// WithTable sets the users table name (default "users").
func WithTable(table string) PostgresOption {
	return func(d *PostgresDirectory) error {
		table = strings.TrimSpace(table)
		if !pgIdentRe.MatchString(table) {
			return fmt.Errorf("directory: invalid table identifier %q", table)
		}
		d.table = table
		return nil
	}
}

func NewPostgresDirectory(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresDirectory, error) {
	if pool == nil {
		return nil, errors.New("directory: nil pool")
	}
	return newPostgresDirectory(pool, opts...)
}

func newPostgresDirectory(db rowQuerier, opts ...PostgresOption) (*PostgresDirectory, error) {
	d := &PostgresDirectory{
		db:     db,
		schema: "public",
		table:  "users",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.query = `SELECT id, tenancy, COALESCE(email, ''), COALESCE(phone, '') FROM ` +
		pgx.Identifier{d.schema, d.table}.Sanitize() +
		` WHERE ($1 = '' OR tenancy = $1) AND (lower(email) = lower($2) OR phone = $2) LIMIT 1`
	return d, nil
}

var _ goVerify.DirectoryLookup = (*PostgresDirectory)(nil)

// Find returns goVerify.ErrDirectoryNotFound when no row matches. Any other
// failure is returned wrapped and is treated by the engine as a lookup
// outage.
func (d *PostgresDirectory) Find(ctx context.Context, identity, tenancy string) (goVerify.UserRecord, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return goVerify.UserRecord{}, goVerify.ErrDirectoryNotFound
	}

	var rec goVerify.UserRecord
	err := d.db.QueryRow(ctx, d.query, tenancy, identity).Scan(&rec.UserID, &rec.Tenancy, &rec.Email, &rec.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return goVerify.UserRecord{}, goVerify.ErrDirectoryNotFound
		}
		return goVerify.UserRecord{}, fmt.Errorf("directory: find: %w", err)
	}
	return rec, nil
}
