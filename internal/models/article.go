package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Article is one packing-list line split across CartonCount cartons.
type Article struct {
	ID            int64           `db:"id" json:"id"`
	ShipmentID    int64           `db:"carga_id" json:"shipment_id"`
	Reference     string          `db:"referencia" json:"reference"`
	DescriptionES string          `db:"descripcion_es" json:"description_es"`
	DescriptionEN string          `db:"descripcion_en" json:"description_en"`
	UnitPrice     decimal.Decimal `db:"precio_unidad" json:"unit_price"`
	Material      string          `db:"material" json:"material"`
	Brand         string          `db:"marca" json:"brand"`
	LengthCM      decimal.Decimal `db:"largo_cm" json:"length_cm"`
	WidthCM       decimal.Decimal `db:"ancho_cm" json:"width_cm"`
	HeightCM      decimal.Decimal `db:"alto_cm" json:"height_cm"`
	VolumeCBM     decimal.Decimal `db:"cbm" json:"volume_cbm"`
	WeightKG      decimal.Decimal `db:"peso_kg" json:"weight_kg"`
	CartonCount   int             `db:"cantidad_cajas" json:"carton_count"`
	ImageURL      *string         `db:"imagen_url" json:"image_url,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ComputeVolume derives the total cubic metres for all cartons from the
// per-carton dimensions in centimetres.
func (a *Article) ComputeVolume() decimal.Decimal {
	perCarton := a.LengthCM.Mul(a.WidthCM).Mul(a.HeightCM).Div(decimal.NewFromInt(1_000_000))
	return perCarton.Mul(decimal.NewFromInt(int64(a.CartonCount))).Round(4)
}

// ArticleContext is an article joined with the shipment it belongs to.
type ArticleContext struct {
	Article
	ShipmentCode string `db:"codigo_carga" json:"shipment_code"`
}
