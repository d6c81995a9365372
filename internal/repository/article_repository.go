package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/packing-qr-api/internal/models"
)

const articleColumns = `a.id, a.carga_id, a.referencia, a.descripcion_es, a.descripcion_en, a.precio_unidad, a.material, a.marca,
a.largo_cm, a.ancho_cm, a.alto_cm, a.cbm, a.peso_kg, a.cantidad_cajas, a.imagen_url, a.created_at`

// ArticleRepository persists packing-list lines (articulos_packing_list).
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository constructs an ArticleRepository.
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BulkCreate inserts articles for a shipment sequentially, filling ids in place.
func (r *ArticleRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, shipmentID int64, articles []models.Article) error {
	const query = `INSERT INTO articulos_packing_list (carga_id, referencia, descripcion_es, descripcion_en, precio_unidad, material, marca,
largo_cm, ancho_cm, alto_cm, cbm, peso_kg, cantidad_cajas, imagen_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`
	target := r.exec(exec)
	now := time.Now().UTC()
	for i := range articles {
		a := &articles[i]
		a.ShipmentID = shipmentID
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.VolumeCBM.IsZero() {
			a.VolumeCBM = a.ComputeVolume()
		}
		err := sqlx.GetContext(ctx, target, &a.ID, query,
			a.ShipmentID, a.Reference, a.DescriptionES, a.DescriptionEN, a.UnitPrice, a.Material, a.Brand,
			a.LengthCM, a.WidthCM, a.HeightCM, a.VolumeCBM, a.WeightKG, a.CartonCount, a.ImageURL, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert article %s: %w", a.Reference, err)
		}
	}
	return nil
}

// FindByID returns nil when the article does not exist.
func (r *ArticleRepository) FindByID(ctx context.Context, id int64) (*models.Article, error) {
	query := fmt.Sprintf("SELECT %s FROM articulos_packing_list a WHERE a.id = $1", articleColumns)
	var article models.Article
	if err := r.db.GetContext(ctx, &article, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find article by id: %w", err)
	}
	return &article, nil
}

// FindWithShipment loads an article together with its shipment code.
func (r *ArticleRepository) FindWithShipment(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ArticleContext, error) {
	query := fmt.Sprintf(`SELECT %s, ca.codigo_carga FROM articulos_packing_list a
JOIN cargas ca ON ca.id = a.carga_id WHERE a.id = $1`, articleColumns)
	var article models.ArticleContext
	if err := sqlx.GetContext(ctx, r.exec(exec), &article, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find article with shipment: %w", err)
	}
	return &article, nil
}

// LockForIssuance takes a row lock on the article so concurrent issuances for it serialise.
// It reports false when the article is gone.
func (r *ArticleRepository) LockForIssuance(ctx context.Context, exec sqlx.ExtContext, id int64) (bool, error) {
	const query = `SELECT id FROM articulos_packing_list WHERE id = $1 FOR UPDATE`
	var locked int64
	if err := sqlx.GetContext(ctx, r.exec(exec), &locked, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("lock article: %w", err)
	}
	return true, nil
}

// ListByShipment returns a shipment's articles ordered by id.
func (r *ArticleRepository) ListByShipment(ctx context.Context, shipmentID int64) ([]models.Article, error) {
	query := fmt.Sprintf("SELECT %s FROM articulos_packing_list a WHERE a.carga_id = $1 ORDER BY a.id", articleColumns)
	var articles []models.Article
	if err := r.db.SelectContext(ctx, &articles, query, shipmentID); err != nil {
		return nil, fmt.Errorf("list articles by shipment: %w", err)
	}
	return articles, nil
}

// UpdateImage sets the product image reference of an article.
func (r *ArticleRepository) UpdateImage(ctx context.Context, id int64, url *string) error {
	const query = `UPDATE articulos_packing_list SET imagen_url = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, url, id)
	if err != nil {
		return fmt.Errorf("update article image: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("article rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an article with its cartons and their codes in one transaction.
func (r *ArticleRepository) Delete(ctx context.Context, id int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete article: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM qr_codes WHERE caja_id IN (SELECT id FROM cajas WHERE articulo_id = $1)`, id); err != nil {
		return fmt.Errorf("delete article codes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM cajas WHERE articulo_id = $1`, id); err != nil {
		return fmt.Errorf("delete article cartons: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM articulos_packing_list WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("article rows affected: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete article: %w", err)
	}
	return nil
}
