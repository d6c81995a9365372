package models

import "time"

// Carton (caja) is one physical box of an article.
type Carton struct {
	ID         int64     `db:"id" json:"id"`
	ArticleID  int64     `db:"articulo_id" json:"article_id"`
	Sequence   int       `db:"numero_caja" json:"sequence"`
	TotalCount int       `db:"total_cajas" json:"total_count"`
	Contents   string    `db:"contenido" json:"contents"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ContiguousCartons reports whether cartons hold sequences 1..total exactly once,
// given they are sorted by sequence.
func ContiguousCartons(cartons []Carton, total int) bool {
	if len(cartons) != total {
		return false
	}
	for i, c := range cartons {
		if c.Sequence != i+1 {
			return false
		}
	}
	return true
}
