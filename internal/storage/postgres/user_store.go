// Package postgres provides the Postgres-backed user sink.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/socialgraph-parser/internal/parser"
)

const defaultTable = "users"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// UserStoreConfig controls the Postgres connection pool used for user rows.
type UserStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// UserStore writes normalized user records into a single table keyed by
// (url_token, content_hash).
type UserStore struct {
	pool  execCloser
	table string
}

// NewUserStore creates a Postgres-backed UserStore using the provided config.
func NewUserStore(ctx context.Context, cfg UserStoreConfig) (*UserStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &UserStore{pool: pool, table: table}, nil
}

// NewUserStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewUserStoreWithPool(pool execCloser, table string) (*UserStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &UserStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *UserStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the user table when it does not exist.
func (s *UserStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url_token           TEXT        NOT NULL,
	content_hash        TEXT        NOT NULL,
	name                TEXT,
	headline            TEXT,
	avatar_url_template TEXT,
	locations           TEXT        NOT NULL DEFAULT '',
	business            TEXT,
	employments         TEXT        NOT NULL DEFAULT '',
	educations          TEXT        NOT NULL DEFAULT '',
	description         TEXT,
	sina_weibo_url      TEXT,
	gender              BIGINT,
	following_count     BIGINT,
	follower_count      BIGINT,
	answer_count        BIGINT,
	question_count      BIGINT,
	voteup_count        BIGINT,
	parsed_at           TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (url_token, content_hash)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// AddUserInfo inserts one record. Re-inserting the same (url_token,
// content_hash) pair is a no-op.
func (s *UserStore) AddUserInfo(ctx context.Context, record parser.NormalizedUserRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("user store is not configured")
	}
	if record.URLToken == nil || *record.URLToken == "" {
		return fmt.Errorf("record url token is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	url_token,
	content_hash,
	name,
	headline,
	avatar_url_template,
	locations,
	business,
	employments,
	educations,
	description,
	sina_weibo_url,
	gender,
	following_count,
	follower_count,
	answer_count,
	question_count,
	voteup_count,
	parsed_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)
ON CONFLICT (url_token, content_hash) DO NOTHING`, s.table)

	args := []any{
		*record.URLToken,
		record.ContentHash,
		record.Name,
		record.Headline,
		record.AvatarURLTemplate,
		record.Locations,
		record.Business,
		record.Employments,
		record.Educations,
		record.Description,
		record.SinaWeiboURL,
		record.Gender,
		record.FollowingCount,
		record.FollowerCount,
		record.AnswerCount,
		record.QuestionCount,
		record.VoteupCount,
		record.ParsedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert user %q: %w", *record.URLToken, err)
	}
	return nil
}
