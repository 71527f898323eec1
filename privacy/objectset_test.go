package privacy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
	"github.com/syssam/rhubarb/objectset"
	"github.com/syssam/rhubarb/privacy"
	"github.com/syssam/rhubarb/schema"
	"github.com/syssam/rhubarb/schema/field"
)

const docColumns = `SELECT doc_1."id" AS id_1, doc_1."title" AS title_2, doc_1."owner_id" AS owner_id_3 FROM "public"."doc" AS doc_1`

func TestObjectSetPolicy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	drv := sql.OpenDB(dialect.Postgres, db)

	reg := objectset.NewRegistry()
	doc := reg.MustRegister(
		schema.NewTable("Doc", field.BigInt("id"), field.Text("title"), field.BigInt("owner_id")),
		objectset.WithPolicy(privacy.Policy{
			Query: privacy.QueryPolicy{
				privacy.HasRole("admin"),
				privacy.OwnerQueryRule("owner_id"),
			},
			Mutation: privacy.MutationPolicy{
				privacy.DenyIfNoViewer(),
				privacy.HasRole("admin"),
				privacy.IsOwner("owner_id"),
				privacy.AlwaysDenyRule(),
			},
		}),
	)
	admin := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1", Roles: []string{"admin"}})
	user := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "7", Roles: []string{"user"}})

	t.Run("Admin", func(t *testing.T) {
		mock.ExpectQuery(docColumns).
			WillReturnRows(sqlmock.NewRows([]string{"id_1", "title_2", "owner_id_3"}).
				AddRow(int64(1), "Roadmap", int64(1)).
				AddRow(int64(2), "Notes", int64(7)))
		all, err := objectset.New(drv, doc).All(admin)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
	t.Run("Owner", func(t *testing.T) {
		mock.ExpectQuery(docColumns + ` WHERE (doc_1."owner_id" = $1::BIGINT)`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id_1", "title_2", "owner_id_3"}).
				AddRow(int64(2), "Notes", int64(7)))
		all, err := objectset.New(drv, doc).All(user)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
	t.Run("Anonymous", func(t *testing.T) {
		_, err := objectset.New(drv, doc).All(context.Background())
		assert.True(t, errors.Is(err, privacy.Deny))
		err = objectset.Delete(drv, doc).Where(objectset.Field[int64]("id").EQ(2)).Exec(context.Background())
		assert.True(t, errors.Is(err, privacy.Deny))
	})
	t.Run("Delete", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM "public"."doc" AS doc_1 WHERE ((doc_1."id" = $1::BIGINT) AND (doc_1."owner_id" = $2::BIGINT))`).
			WithArgs(int64(3), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		err := objectset.Delete(drv, doc).Where(objectset.Field[int64]("id").EQ(3)).Exec(user)
		require.NoError(t, err)
	})
	t.Run("Insert", func(t *testing.T) {
		err := objectset.Insert(drv, doc).Columns("title", "owner_id").Values("Stolen", int64(8)).Exec(user)
		assert.True(t, errors.Is(err, privacy.Deny))

		mock.ExpectExec(`INSERT INTO "public"."doc" AS doc_1 ("title", "owner_id") VALUES ($1::TEXT, $2::BIGINT)`).
			WithArgs("Draft", int64(7)).
			WillReturnResult(sqlmock.NewResult(3, 1))
		err = objectset.Insert(drv, doc).Columns("title", "owner_id").Values("Draft", int64(7)).Exec(user)
		require.NoError(t, err)
	})
	require.NoError(t, mock.ExpectationsWereMet())
}
