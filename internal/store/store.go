package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotRegistered     = errors.New("not registered")
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	invalidTextRepr     = "22P02"
	foreignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// translate maps driver errors onto the package sentinels. A malformed uuid
// can never match a row, so it is reported as not found.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrDuplicate
		case invalidTextRepr, foreignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}

// escapeILIKEPattern escapes the ILIKE wildcards so search input is matched literally.
func escapeILIKEPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// searchTerms splits search on whitespace and escapes each term for ILIKE.
// The result is never nil so it encodes as an empty array.
func searchTerms(search string) []string {
	fields := strings.Fields(search)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, escapeILIKEPattern(f))
	}
	return terms
}
