package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/socialgraph-parser/internal/parser"
)

// userColumns is the number of bound parameters in the insert.
const userColumns = 18

func ptr[T any](v T) *T {
	return &v
}

func sampleRecord() parser.NormalizedUserRecord {
	return parser.NormalizedUserRecord{
		URLToken:       ptr("alice"),
		Name:           ptr("Alice"),
		Headline:       ptr("builder"),
		Locations:      "Beijing;Shanghai",
		Business:       ptr("Internet"),
		Employments:    "Acme-Eng",
		Educations:     "MIT",
		Gender:         ptr(int64(1)),
		FollowingCount: ptr(int64(10)),
		FollowerCount:  ptr(int64(20)),
		ContentHash:    "abc123",
		ParsedAt:       time.Unix(1700000000, 0).UTC(),
	}
}

func TestAddUserInfoInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewUserStoreWithPool(mock, "")
	require.NoError(t, err)

	rec := sampleRecord()
	mock.ExpectExec(`(?s)INSERT INTO users.*ON CONFLICT \(url_token, content_hash\) DO NOTHING`).
		WithArgs(
			"alice",
			rec.ContentHash,
			rec.Name,
			rec.Headline,
			rec.AvatarURLTemplate,
			rec.Locations,
			rec.Business,
			rec.Employments,
			rec.Educations,
			rec.Description,
			rec.SinaWeiboURL,
			rec.Gender,
			rec.FollowingCount,
			rec.FollowerCount,
			rec.AnswerCount,
			rec.QuestionCount,
			rec.VoteupCount,
			rec.ParsedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.AddUserInfo(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddUserInfoWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewUserStoreWithPool(mock, "crawl_users")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	args := make([]any, userColumns)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO crawl_users").WithArgs(args...).WillReturnError(boom)

	err = store.AddUserInfo(context.Background(), sampleRecord())
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddUserInfoRequiresToken(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewUserStoreWithPool(mock, "")
	require.NoError(t, err)

	rec := sampleRecord()
	rec.URLToken = nil
	require.Error(t, store.AddUserInfo(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewUserStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewUserStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewUserStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewUserStoreWithPool(mock, "users; DROP TABLE x")
	require.Error(t, err)
}

func TestNewUserStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewUserStore(context.Background(), UserStoreConfig{})
	require.Error(t, err)
}
