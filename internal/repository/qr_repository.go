package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/packing-qr-api/internal/models"
)

const qrColumns = `q.id, q.caja_id, q.codigo_qr, q.estado, q.fecha_generacion, q.fecha_impresion, q.fecha_escaneo,
q.escaneado_por, q.formato, q.tamano, q.ruta_imagen`

const qrDetailSelect = `SELECT ` + qrColumns + `,
c.numero_caja, c.total_cajas, c.contenido,
a.id AS articulo_id, a.referencia, a.descripcion_es, a.descripcion_en, a.imagen_url,
ca.id AS carga_id, ca.codigo_carga, COALESCE(cl.nombre, '') AS cliente_nombre, ca.destino
FROM qr_codes q
JOIN cajas c ON c.id = q.caja_id
JOIN articulos_packing_list a ON a.id = c.articulo_id
JOIN cargas ca ON ca.id = a.carga_id
LEFT JOIN clientes cl ON cl.id = ca.cliente_id`

// QRRepository persists issued codes (qr_codes).
type QRRepository struct {
	db *sqlx.DB
}

// NewQRRepository constructs a QRRepository.
func NewQRRepository(db *sqlx.DB) *QRRepository {
	return &QRRepository{db: db}
}

func (r *QRRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindCodesByArticle returns an article's codes ordered by carton sequence.
func (r *QRRepository) FindCodesByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) ([]models.QRCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM qr_codes q JOIN cajas c ON c.id = q.caja_id
WHERE c.articulo_id = $1 ORDER BY c.numero_caja`, qrColumns)
	var codes []models.QRCode
	if err := sqlx.SelectContext(ctx, r.exec(exec), &codes, query, articleID); err != nil {
		return nil, fmt.Errorf("list codes by article: %w", err)
	}
	return codes, nil
}

// FindByID returns nil when the code row does not exist.
func (r *QRRepository) FindByID(ctx context.Context, id int64) (*models.QRCode, error) {
	query := fmt.Sprintf("SELECT %s FROM qr_codes q WHERE q.id = $1", qrColumns)
	var code models.QRCode
	if err := r.db.GetContext(ctx, &code, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find code by id: %w", err)
	}
	return &code, nil
}

// FindCodeByValue returns nil when no row carries the code string.
func (r *QRRepository) FindCodeByValue(ctx context.Context, value string) (*models.QRCode, error) {
	query := fmt.Sprintf("SELECT %s FROM qr_codes q WHERE q.codigo_qr = $1", qrColumns)
	var code models.QRCode
	if err := r.db.GetContext(ctx, &code, query, value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find code by value: %w", err)
	}
	return &code, nil
}

// FindDetailByValue loads a code with its carton, article and shipment.
func (r *QRRepository) FindDetailByValue(ctx context.Context, value string) (*models.QRDetail, error) {
	query := qrDetailSelect + ` WHERE q.codigo_qr = $1`
	var detail models.QRDetail
	if err := r.db.GetContext(ctx, &detail, query, value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find code detail: %w", err)
	}
	return &detail, nil
}

// FindCodesByShipmentCode returns every code of a shipment ordered by article then carton.
func (r *QRRepository) FindCodesByShipmentCode(ctx context.Context, shipmentCode string) ([]models.QRDetail, error) {
	query := qrDetailSelect + ` WHERE ca.codigo_carga = $1 ORDER BY a.id, c.numero_caja`
	var details []models.QRDetail
	if err := r.db.SelectContext(ctx, &details, query, shipmentCode); err != nil {
		return nil, fmt.Errorf("list codes by shipment: %w", err)
	}
	return details, nil
}

// DeleteCodesByArticle removes all codes of an article in one statement.
func (r *QRRepository) DeleteCodesByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) (int64, error) {
	const query = `DELETE FROM qr_codes WHERE caja_id IN (SELECT id FROM cajas WHERE articulo_id = $1)`
	result, err := r.exec(exec).ExecContext(ctx, query, articleID)
	if err != nil {
		return 0, fmt.Errorf("delete codes by article: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("code rows affected: %w", err)
	}
	return affected, nil
}

// Insert stores a code row and fills its id. A clashing code or carton yields ErrDuplicate.
func (r *QRRepository) Insert(ctx context.Context, exec sqlx.ExtContext, code *models.QRCode) error {
	if code == nil {
		return fmt.Errorf("code payload is nil")
	}
	const query = `INSERT INTO qr_codes (caja_id, codigo_qr, estado, fecha_generacion, formato, tamano, ruta_imagen)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := sqlx.GetContext(ctx, r.exec(exec), &code.ID, query,
		code.CartonID, code.Code, code.State, code.GeneratedAt, code.Format, code.Size, code.ImagePath)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert code: %w", err)
	}
	return nil
}

// UpdateCode replaces the code string of a row. Print, scan and image data belong to
// the previous label and are cleared.
func (r *QRRepository) UpdateCode(ctx context.Context, id int64, value string, state models.QRState, at time.Time) error {
	const query = `UPDATE qr_codes SET codigo_qr = $1, estado = $2, fecha_generacion = $3,
fecha_impresion = NULL, fecha_escaneo = NULL, escaneado_por = NULL, ruta_imagen = NULL WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, value, state, at, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update code: %w", err)
	}
	return requireAffected(result, "update code")
}

// MarkScanned records a scan. The scanner identity is kept when by is nil.
func (r *QRRepository) MarkScanned(ctx context.Context, id int64, at time.Time, by *string) error {
	const query = `UPDATE qr_codes SET estado = $1, fecha_escaneo = $2, escaneado_por = COALESCE($3, escaneado_por) WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, models.QRStateScanned, at, by, id)
	if err != nil {
		return fmt.Errorf("mark code scanned: %w", err)
	}
	return requireAffected(result, "mark code scanned")
}

// MarkPrinted stamps the print time on the given rows and returns how many changed.
func (r *QRRepository) MarkPrinted(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE qr_codes SET fecha_impresion = $1 WHERE id = ANY($2)`
	result, err := r.db.ExecContext(ctx, query, at, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("mark codes printed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("code rows affected: %w", err)
	}
	return affected, nil
}

// UpdateRendering stores where the raster of a code lives.
func (r *QRRepository) UpdateRendering(ctx context.Context, id int64, meta models.QRRenderingMeta) error {
	const query = `UPDATE qr_codes SET ruta_imagen = $1, formato = $2, tamano = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, meta.ImagePath, meta.Format, meta.Size, id)
	if err != nil {
		return fmt.Errorf("update code rendering: %w", err)
	}
	return requireAffected(result, "update code rendering")
}

type duplicateRow struct {
	Code  string        `db:"codigo_qr"`
	IDs   pq.Int64Array `db:"ids"`
	Count int           `db:"total"`
}

// FindDuplicates lists code strings held by more than one row.
func (r *QRRepository) FindDuplicates(ctx context.Context) ([]models.DuplicateGroup, error) {
	const query = `SELECT codigo_qr, array_agg(id ORDER BY id) AS ids, COUNT(*) AS total
FROM qr_codes GROUP BY codigo_qr HAVING COUNT(*) > 1 ORDER BY codigo_qr`
	var rows []duplicateRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("find duplicate codes: %w", err)
	}
	groups := make([]models.DuplicateGroup, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, models.DuplicateGroup{Code: row.Code, IDs: []int64(row.IDs), Count: row.Count})
	}
	return groups, nil
}

type statsRow struct {
	Total       int          `db:"total"`
	Generated   int          `db:"generated"`
	Regenerated int          `db:"regenerated"`
	Scanned     int          `db:"scanned"`
	Printed     int          `db:"printed"`
	LastIssued  sql.NullTime `db:"last_issued"`
}

// Stats counts codes per state, optionally scoped to a shipment code or article.
func (r *QRRepository) Stats(ctx context.Context, filter models.QRStatsFilter) (*models.QRStats, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.ShipmentCode != "" {
		args = append(args, filter.ShipmentCode)
		conditions = append(conditions, fmt.Sprintf("ca.codigo_carga = $%d", len(args)))
	}
	if filter.ArticleID > 0 {
		args = append(args, filter.ArticleID)
		conditions = append(conditions, fmt.Sprintf("a.id = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")
	scope := `FROM cajas c
JOIN articulos_packing_list a ON a.id = c.articulo_id
JOIN cargas ca ON ca.id = a.carga_id`

	query := fmt.Sprintf(`SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE q.estado = 'generado') AS generated,
COUNT(*) FILTER (WHERE q.estado = 'regenerado') AS regenerated,
COUNT(*) FILTER (WHERE q.estado = 'escaneado') AS scanned,
COUNT(q.fecha_impresion) AS printed,
MAX(q.fecha_generacion) AS last_issued
FROM qr_codes q JOIN cajas c ON c.id = q.caja_id
JOIN articulos_packing_list a ON a.id = c.articulo_id
JOIN cargas ca ON ca.id = a.carga_id WHERE %s`, where)
	var row statsRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("code stats: %w", err)
	}

	var cartons int
	if err := r.db.GetContext(ctx, &cartons, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", scope, where), args...); err != nil {
		return nil, fmt.Errorf("carton stats: %w", err)
	}

	stats := &models.QRStats{
		Total:       row.Total,
		Generated:   row.Generated,
		Regenerated: row.Regenerated,
		Scanned:     row.Scanned,
		Printed:     row.Printed,
		Cartons:     cartons,
	}
	if row.LastIssued.Valid {
		last := row.LastIssued.Time
		stats.LastIssued = &last
	}
	return stats, nil
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
