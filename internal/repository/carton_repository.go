package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/packing-qr-api/internal/models"
)

const cartonColumns = `id, articulo_id, numero_caja, total_cajas, contenido, created_at`

// CartonRepository persists physical boxes (cajas).
type CartonRepository struct {
	db *sqlx.DB
}

// NewCartonRepository constructs a CartonRepository.
func NewCartonRepository(db *sqlx.DB) *CartonRepository {
	return &CartonRepository{db: db}
}

func (r *CartonRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BulkCreate inserts one carton per declared unit with sequences 1..total.
func (r *CartonRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, articleID int64, total int, contents string) ([]models.Carton, error) {
	if total <= 0 {
		return nil, fmt.Errorf("carton total must be positive, got %d", total)
	}
	const query = `INSERT INTO cajas (articulo_id, numero_caja, total_cajas, contenido, created_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`
	target := r.exec(exec)
	now := time.Now().UTC()
	cartons := make([]models.Carton, 0, total)
	for seq := 1; seq <= total; seq++ {
		carton := models.Carton{ArticleID: articleID, Sequence: seq, TotalCount: total, Contents: contents, CreatedAt: now}
		if err := sqlx.GetContext(ctx, target, &carton.ID, query, articleID, seq, total, contents, now); err != nil {
			return nil, fmt.Errorf("insert carton %d/%d: %w", seq, total, err)
		}
		cartons = append(cartons, carton)
	}
	return cartons, nil
}

// FindByArticle returns an article's cartons ordered by sequence.
func (r *CartonRepository) FindByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) ([]models.Carton, error) {
	query := fmt.Sprintf("SELECT %s FROM cajas WHERE articulo_id = $1 ORDER BY numero_caja", cartonColumns)
	var cartons []models.Carton
	if err := sqlx.SelectContext(ctx, r.exec(exec), &cartons, query, articleID); err != nil {
		return nil, fmt.Errorf("list cartons by article: %w", err)
	}
	return cartons, nil
}

// LockByArticle is FindByArticle holding row locks until the transaction ends.
func (r *CartonRepository) LockByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) ([]models.Carton, error) {
	query := fmt.Sprintf("SELECT %s FROM cajas WHERE articulo_id = $1 ORDER BY numero_caja FOR UPDATE", cartonColumns)
	var cartons []models.Carton
	if err := sqlx.SelectContext(ctx, r.exec(exec), &cartons, query, articleID); err != nil {
		return nil, fmt.Errorf("lock cartons by article: %w", err)
	}
	return cartons, nil
}

// FindByID returns nil when the carton does not exist.
func (r *CartonRepository) FindByID(ctx context.Context, id int64) (*models.Carton, error) {
	query := fmt.Sprintf("SELECT %s FROM cajas WHERE id = $1", cartonColumns)
	var carton models.Carton
	if err := r.db.GetContext(ctx, &carton, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find carton by id: %w", err)
	}
	return &carton, nil
}
