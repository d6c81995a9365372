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

var shipmentRowColumns = []string{"id", "codigo_carga", "cliente_id", "cliente_nombre", "fecha_inicio", "fecha_fin", "destino", "archivo_origen", "created_at"}

func TestShipmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShipmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cargas (codigo_carga, cliente_id")).
		WithArgs("PL-20250820-001", int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), "Valencia", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))

	shipment := &models.Shipment{Code: "PL-20250820-001", ClientID: 3, StartDate: time.Now(), Destination: "Valencia"}
	require.NoError(t, repo.Create(context.Background(), nil, shipment))
	assert.Equal(t, int64(41), shipment.ID)
	assert.False(t, shipment.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShipmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cargas")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), nil, &models.Shipment{Code: "PL-1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShipmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ca.codigo_carga = $1")).
		WithArgs("PL-1").
		WillReturnRows(sqlmock.NewRows(shipmentRowColumns).AddRow(7, "PL-1", 3, "Acme", now, nil, "Lima", nil, now))

	shipment, err := repo.FindByCode(context.Background(), "PL-1")
	require.NoError(t, err)
	require.NotNil(t, shipment)
	assert.Equal(t, "Acme", shipment.ClientName)
	assert.Nil(t, shipment.EndDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepositoryFindByCodeNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShipmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ca.codigo_carga = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	shipment, err := repo.FindByCode(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, shipment)
}

func TestShipmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShipmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY ca.fecha_inicio DESC, ca.id DESC LIMIT 10 OFFSET 10")).
		WithArgs(int64(3), "%lima%").
		WillReturnRows(sqlmock.NewRows(shipmentRowColumns).AddRow(7, "PL-1", 3, "Acme", now, nil, "Lima", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cargas ca WHERE")).
		WithArgs(int64(3), "%lima%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	list, total, err := repo.List(context.Background(), models.ShipmentFilter{ClientID: 3, Search: "Lima", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepositoryUpdateCorrectionsNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShipmentRepository(db)

	destination := "Callao"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cargas SET fecha_fin = COALESCE($1, fecha_fin), destino = COALESCE($2, destino) WHERE id = $3")).
		WithArgs(sqlmock.AnyArg(), "Callao", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCorrections(context.Background(), 99, nil, &destination)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewShipmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ca.id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(shipmentRowColumns).AddRow(7, "PL-1", 3, "Acme", now, now, "Lima", "pl.xlsx", now))

	shipment, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, shipment)
	assert.Equal(t, "PL-1", shipment.Code)
	require.NotNil(t, shipment.SourceFile)
	assert.Equal(t, "pl.xlsx", *shipment.SourceFile)
	assert.NoError(t, mock.ExpectationsWereMet())
}
