package models

import "time"

// QRState is the lifecycle state of an issued code.
type QRState string

const (
	QRStateGenerated   QRState = "generado"
	QRStateRegenerated QRState = "regenerado"
	QRStateScanned     QRState = "escaneado"
)

// QRCode is the issuance record bound to one carton.
type QRCode struct {
	ID          int64      `db:"id" json:"id"`
	CartonID    int64      `db:"caja_id" json:"carton_id"`
	Code        string     `db:"codigo_qr" json:"code"`
	State       QRState    `db:"estado" json:"state"`
	GeneratedAt time.Time  `db:"fecha_generacion" json:"generated_at"`
	PrintedAt   *time.Time `db:"fecha_impresion" json:"printed_at,omitempty"`
	ScannedAt   *time.Time `db:"fecha_escaneo" json:"scanned_at,omitempty"`
	ScannedBy   *string    `db:"escaneado_por" json:"scanned_by,omitempty"`
	Format      string     `db:"formato" json:"format"`
	Size        int        `db:"tamano" json:"size"`
	ImagePath   *string    `db:"ruta_imagen" json:"image_path,omitempty"`
}

// QRDetail is a code joined with its carton, article and shipment.
type QRDetail struct {
	QRCode
	CartonSequence  int     `db:"numero_caja" json:"carton_sequence"`
	CartonTotal     int     `db:"total_cajas" json:"carton_total"`
	CartonContents  string  `db:"contenido" json:"carton_contents"`
	ArticleID       int64   `db:"articulo_id" json:"article_id"`
	ArticleRef      string  `db:"referencia" json:"article_reference"`
	DescriptionES   string  `db:"descripcion_es" json:"description_es"`
	DescriptionEN   string  `db:"descripcion_en" json:"description_en"`
	ShipmentID      int64   `db:"carga_id" json:"shipment_id"`
	ShipmentCode    string  `db:"codigo_carga" json:"shipment_code"`
	ClientName      string  `db:"cliente_nombre" json:"client_name"`
	Destination     string  `db:"destino" json:"destination"`
	ArticleImageURL *string `db:"imagen_url" json:"article_image_url,omitempty"`
}

// QRRenderingMeta describes the raster produced for a code.
type QRRenderingMeta struct {
	ImagePath string
	Format    string
	Size      int
}

// DuplicateGroup lists rows sharing one code string.
type DuplicateGroup struct {
	Code  string  `json:"code"`
	IDs   []int64 `json:"ids"`
	Count int     `json:"count"`
}

// QRStatsFilter scopes statistics to a shipment or article.
type QRStatsFilter struct {
	ShipmentCode string
	ArticleID    int64
}

// QRStats counts codes per lifecycle state.
type QRStats struct {
	Total       int        `json:"total"`
	Generated   int        `json:"generated"`
	Regenerated int        `json:"regenerated"`
	Scanned     int        `json:"scanned"`
	Printed     int        `json:"printed"`
	Cartons     int        `json:"cartons"`
	LastIssued  *time.Time `json:"last_issued,omitempty"`
}
