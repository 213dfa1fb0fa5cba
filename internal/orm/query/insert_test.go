package query

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entitymap/internal/orm/codegen"
	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
	"github.com/conduit-lang/entitymap/internal/orm/entity"
	"github.com/conduit-lang/entitymap/internal/orm/translate"

	_ "github.com/mattn/go-sqlite3"
)

type Tag struct {
	Slug  string `db:"slug,pk"`
	Label string
}

type Counter struct {
	Id int64 `db:"id,pk,auto"`
}

func TestInsert(t *testing.T) {
	authors := describe(t, Author{})
	email := "ada@example.com"

	t.Run("postgres returns generated key", func(t *testing.T) {
		sql, args, err := Insert(authors, dbexpr.Postgres, &Author{Name: "Ada", Email: &email})
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "authors" ("name", "email") VALUES ($1, $2) RETURNING "id"`, sql)
		assert.Equal(t, []interface{}{"Ada", &email}, args)
	})

	t.Run("mysql", func(t *testing.T) {
		sql, _, err := Insert(authors, dbexpr.MySQL, &Author{Name: "Ada"})
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO `authors` (`name`, `email`) VALUES (?, ?)", sql)
	})

	t.Run("no auto-increment key", func(t *testing.T) {
		sql, args, err := Insert(describe(t, Tag{}), dbexpr.Postgres, &Tag{Slug: "go", Label: "Go"})
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "tag" ("slug", "label") VALUES ($1, $2)`, sql)
		assert.Equal(t, []interface{}{"go", "Go"}, args)
	})

	t.Run("only an auto-increment key", func(t *testing.T) {
		counters := describe(t, Counter{})

		sql, args, err := Insert(counters, dbexpr.MySQL, &Counter{})
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO `counter` () VALUES ()", sql)
		assert.Empty(t, args)

		sql, _, err = Insert(counters, dbexpr.SQLite, &Counter{})
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "counter" DEFAULT VALUES`, sql)

		sql, _, err = Insert(counters, dbexpr.Postgres, &Counter{})
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "counter" DEFAULT VALUES RETURNING "id"`, sql)
	})

	t.Run("nil embedded struct is left alone", func(t *testing.T) {
		post := &Post{AuthorId: 1, Title: "Hello"}

		sql, args, err := Insert(describe(t, Post{}), dbexpr.Postgres, post)
		require.NoError(t, err)
		assert.Equal(t, `INSERT INTO "posts" ("created_at", "author_id", "title", "views") VALUES ($1, $2, $3, $4) RETURNING "id"`, sql)
		assert.Equal(t, []interface{}{time.Time{}, int64(1), "Hello", int32(0)}, args)
		assert.Nil(t, post.Audit)
	})

	t.Run("rejects other types", func(t *testing.T) {
		_, _, err := Insert(authors, dbexpr.Postgres, Author{})
		assert.ErrorIs(t, err, ErrTypeMismatch)

		_, _, err = Insert(authors, dbexpr.Postgres, &Post{})
		assert.ErrorIs(t, err, ErrTypeMismatch)

		var nilAuthor *Author
		_, _, err = Insert(authors, dbexpr.Postgres, nilAuthor)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}

func TestCreate(t *testing.T) {
	authors := describe(t, Author{})

	t.Run("postgres scans returning", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "authors" ("name", "email") VALUES ($1, $2) RETURNING "id"`)).
			WithArgs("Ada", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

		author := &Author{Name: "Ada"}
		require.NoError(t, Create(context.Background(), db, authors, dbexpr.Postgres, author))
		assert.Equal(t, int64(12), author.Id)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mysql reads last insert id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `authors`")).
			WithArgs("Grace", nil).
			WillReturnResult(sqlmock.NewResult(8, 1))

		author := &Author{Name: "Grace"}
		require.NoError(t, Create(context.Background(), db, authors, dbexpr.MySQL, author))
		assert.Equal(t, int64(8), author.Id)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver errors are converted", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "tag"`)).
			WillReturnError(sql.ErrNoRows)

		err = Create(context.Background(), db, describe(t, Tag{}), dbexpr.SQLite, &Tag{Slug: "go"})
		assert.ErrorIs(t, err, ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLiteRoundTrip(t *testing.T) {
	registry := descriptor.NewRegistry(descriptor.WithParserFactory(translate.Factory))
	for _, v := range []interface{}{Author{}, Post{}} {
		def, err := entity.Scan(reflect.TypeOf(v))
		require.NoError(t, err)
		_, err = registry.Register(def)
		require.NoError(t, err)
	}
	authors, _ := registry.GetByName("Author")
	posts, _ := registry.GetByName("Post")

	ddl, err := codegen.NewDDLGenerator(dbexpr.SQLite).GenerateSchema(registry)
	require.NoError(t, err)

	ctx := context.Background()
	db, err := Open(ctx, dbexpr.SQLite, filepath.Join(t.TempDir(), "blog.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range strings.Split(ddl, "\n\n") {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	ada := &Author{Name: "Ada"}
	require.NoError(t, Create(ctx, db, authors, dbexpr.SQLite, ada))
	assert.Equal(t, int64(1), ada.Id)

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"First", "Second", "Third"} {
		post := &Post{Audit: &Audit{CreatedAt: created}, AuthorId: ada.Id, Title: title, Views: int32(i * 10)}
		require.NoError(t, Create(ctx, db, posts, dbexpr.SQLite, post))
		assert.NotZero(t, post.Id)
	}

	err = Create(ctx, db, posts, dbexpr.SQLite, &Post{AuthorId: 99, Title: "Orphan"})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)

	q := New(posts, dbexpr.SQLite).Where("Views >= 10 && Author == 1").OrderBy("Views", true)
	results, err := All[Post](ctx, db, q)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Third", results[0].Title)
	assert.Equal(t, "Second", results[1].Title)
	assert.True(t, created.Equal(results[0].CreatedAt))

	first, err := First[Author](ctx, db, New(authors, dbexpr.SQLite).Where(`Name == "Ada"`))
	require.NoError(t, err)
	assert.Equal(t, ada.Id, first.Id)
	assert.Nil(t, first.Email)

	_, err = First[Author](ctx, db, New(authors, dbexpr.SQLite).Where(`Name == "Grace"`))
	assert.ErrorIs(t, err, ErrNotFound)
}
