package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartonRepositoryBulkCreateSequences(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCartonRepository(db)

	for seq := 1; seq <= 3; seq++ {
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cajas (articulo_id, numero_caja, total_cajas, contenido, created_at)")).
			WithArgs(int64(17), seq, 3, "2 sillas", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100 + seq))
	}

	cartons, err := repo.BulkCreate(context.Background(), nil, 17, 3, "2 sillas")
	require.NoError(t, err)
	require.Len(t, cartons, 3)
	for i, carton := range cartons {
		assert.Equal(t, i+1, carton.Sequence)
		assert.Equal(t, 3, carton.TotalCount)
		assert.Equal(t, int64(101+i), carton.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartonRepositoryBulkCreateRejectsNonPositive(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()

	_, err := NewCartonRepository(db).BulkCreate(context.Background(), nil, 17, 0, "")
	assert.Error(t, err)
}

func TestCartonRepositoryLockByArticle(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCartonRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "articulo_id", "numero_caja", "total_cajas", "contenido", "created_at"}).
		AddRow(101, 17, 1, 2, "", now).
		AddRow(102, 17, 2, 2, "", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM cajas WHERE articulo_id = $1 ORDER BY numero_caja FOR UPDATE")).
		WithArgs(int64(17)).
		WillReturnRows(rows)

	cartons, err := repo.LockByArticle(context.Background(), nil, 17)
	require.NoError(t, err)
	assert.Len(t, cartons, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartonRepositoryFindByArticleAndID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCartonRepository(db)

	columns := []string{"id", "articulo_id", "numero_caja", "total_cajas", "contenido", "created_at"}
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM cajas WHERE articulo_id = $1 ORDER BY numero_caja")).
		WithArgs(int64(17)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(101, 17, 1, 1, "2 sillas", now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM cajas WHERE id = $1")).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	cartons, err := repo.FindByArticle(context.Background(), nil, 17)
	require.NoError(t, err)
	require.Len(t, cartons, 1)
	assert.Equal(t, "2 sillas", cartons[0].Contents)

	carton, err := repo.FindByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, carton)
	assert.NoError(t, mock.ExpectationsWereMet())
}
