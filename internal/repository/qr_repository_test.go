package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/packing-qr-api/internal/models"
)

func TestQRRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO qr_codes (caja_id, codigo_qr, estado, fecha_generacion, formato, tamano, ruta_imagen)")).
		WithArgs(int64(101), "QR_PL-1_17_1_1755650000000_abc123", "generado", sqlmock.AnyArg(), "png", 300, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	code := &models.QRCode{CartonID: 101, Code: "QR_PL-1_17_1_1755650000000_abc123", State: models.QRStateGenerated, GeneratedAt: time.Now(), Format: "png", Size: 300}
	require.NoError(t, repo.Insert(context.Background(), nil, code))
	assert.Equal(t, int64(9), code.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryInsertDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO qr_codes")).WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Insert(context.Background(), nil, &models.QRCode{CartonID: 101})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestQRRepositoryDeleteCodesByArticle(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM qr_codes WHERE caja_id IN (SELECT id FROM cajas WHERE articulo_id = $1)")).
		WithArgs(int64(17)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteCodesByArticle(context.Background(), nil, 17)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryUpdateCodeMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE qr_codes SET codigo_qr = $1, estado = $2")).
		WithArgs("RGN_PL-1_17_1_1755650000001_zz9988", "regenerado", sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCode(context.Background(), 5, "RGN_PL-1_17_1_1755650000001_zz9988", models.QRStateRegenerated, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryMarkScanned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	scanner := "dock-3"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE qr_codes SET estado = $1, fecha_escaneo = $2, escaneado_por = COALESCE($3, escaneado_por) WHERE id = $4")).
		WithArgs("escaneado", sqlmock.AnyArg(), "dock-3", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkScanned(context.Background(), 5, time.Now(), &scanner))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryMarkPrinted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE qr_codes SET fecha_impresion = $1 WHERE id = ANY($2)")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	changed, err := repo.MarkPrinted(context.Background(), []int64{4, 5}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = repo.MarkPrinted(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryFindDuplicates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY codigo_qr HAVING COUNT(*) > 1")).
		WillReturnRows(sqlmock.NewRows([]string{"codigo_qr", "ids", "total"}).AddRow("QR_X_1_1_1_abcdef", "{4,9}", 2))

	groups, err := repo.FindDuplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []int64{4, 9}, groups[0].IDs)
	assert.Equal(t, 2, groups[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryStatsByShipment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	issued := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE q.estado = 'generado') AS generated")).
		WithArgs("PL-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "generated", "regenerated", "scanned", "printed", "last_issued"}).
			AddRow(5, 3, 1, 1, 2, issued))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cajas c")).
		WithArgs("PL-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	stats, err := repo.Stats(context.Background(), models.QRStatsFilter{ShipmentCode: "PL-1"})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.Generated)
	assert.Equal(t, 6, stats.Cartons)
	require.NotNil(t, stats.LastIssued)
	assert.True(t, stats.LastIssued.Equal(issued))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQRRepositoryFindDetailByValueMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE q.codigo_qr = $1")).
		WithArgs("QR_X_1_1_1_abcdef").
		WillReturnError(sql.ErrNoRows)

	detail, err := repo.FindDetailByValue(context.Background(), "QR_X_1_1_1_abcdef")
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestQRRepositoryFindCodeByValue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQRRepository(db)

	columns := []string{"id", "caja_id", "codigo_qr", "estado", "fecha_generacion", "fecha_impresion", "fecha_escaneo",
		"escaneado_por", "formato", "tamano", "ruta_imagen"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM qr_codes q WHERE q.codigo_qr = $1")).
		WithArgs("QR_PL-1_17_1_1755648000000_abc123").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(9, 101, "QR_PL-1_17_1_1755648000000_abc123", "generado",
			time.Now(), nil, nil, nil, "png", 300, nil))

	code, err := repo.FindCodeByValue(context.Background(), "QR_PL-1_17_1_1755648000000_abc123")
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, int64(101), code.CartonID)
	assert.Equal(t, models.QRStateGenerated, code.State)

	mock.ExpectQuery(regexp.QuoteMeta("FROM qr_codes q WHERE q.codigo_qr = $1")).
		WithArgs("QR_PL-1_17_1_1755648000000_zzzzzz").
		WillReturnError(sql.ErrNoRows)
	code, err = repo.FindCodeByValue(context.Background(), "QR_PL-1_17_1_1755648000000_zzzzzz")
	require.NoError(t, err)
	assert.Nil(t, code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
