package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/packing-qr-api/internal/models"
)

const shipmentColumns = `ca.id, ca.codigo_carga, ca.cliente_id, COALESCE(cl.nombre, '') AS cliente_nombre,
ca.fecha_inicio, ca.fecha_fin, ca.destino, ca.archivo_origen, ca.created_at`

const shipmentFrom = `FROM cargas ca LEFT JOIN clientes cl ON cl.id = ca.cliente_id`

// ShipmentRepository persists shipments (cargas).
type ShipmentRepository struct {
	db *sqlx.DB
}

// NewShipmentRepository constructs a ShipmentRepository.
func NewShipmentRepository(db *sqlx.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

func (r *ShipmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a shipment and fills its generated id. A duplicate code yields ErrDuplicate.
func (r *ShipmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, shipment *models.Shipment) error {
	if shipment == nil {
		return fmt.Errorf("shipment payload is nil")
	}
	if shipment.CreatedAt.IsZero() {
		shipment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO cargas (codigo_carga, cliente_id, fecha_inicio, fecha_fin, destino, archivo_origen, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := sqlx.GetContext(ctx, r.exec(exec), &shipment.ID, query,
		shipment.Code, shipment.ClientID, shipment.StartDate, shipment.EndDate, shipment.Destination, shipment.SourceFile, shipment.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

// FindByID returns nil when the shipment does not exist.
func (r *ShipmentRepository) FindByID(ctx context.Context, id int64) (*models.Shipment, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE ca.id = $1", shipmentColumns, shipmentFrom)
	var shipment models.Shipment
	if err := r.db.GetContext(ctx, &shipment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find shipment by id: %w", err)
	}
	return &shipment, nil
}

// FindByCode returns nil when no shipment carries the code.
func (r *ShipmentRepository) FindByCode(ctx context.Context, code string) (*models.Shipment, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE ca.codigo_carga = $1", shipmentColumns, shipmentFrom)
	var shipment models.Shipment
	if err := r.db.GetContext(ctx, &shipment, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find shipment by code: %w", err)
	}
	return &shipment, nil
}

// List returns a page of shipments, newest first, plus the total count.
func (r *ShipmentRepository) List(ctx context.Context, filter models.ShipmentFilter) ([]models.Shipment, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.ClientID > 0 {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("ca.cliente_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(ca.codigo_carga) LIKE $%d OR LOWER(ca.destino) LIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY ca.fecha_inicio DESC, ca.id DESC LIMIT %d OFFSET %d",
		shipmentColumns, shipmentFrom, where, size, offset)
	var shipments []models.Shipment
	if err := r.db.SelectContext(ctx, &shipments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list shipments: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM cargas ca WHERE %s", where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count shipments: %w", err)
	}
	return shipments, total, nil
}

// UpdateCorrections amends only the end date and destination of a shipment.
func (r *ShipmentRepository) UpdateCorrections(ctx context.Context, id int64, endDate *time.Time, destination *string) error {
	const query = `UPDATE cargas SET fecha_fin = COALESCE($1, fecha_fin), destino = COALESCE($2, destino) WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, endDate, destination, id)
	if err != nil {
		return fmt.Errorf("update shipment corrections: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("shipment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
