package models

import "time"

// Shipment (carga) is one consignment tracked as a unit.
type Shipment struct {
	ID          int64      `db:"id" json:"id"`
	Code        string     `db:"codigo_carga" json:"code"`
	ClientID    int64      `db:"cliente_id" json:"client_id"`
	ClientName  string     `db:"cliente_nombre" json:"client_name"`
	StartDate   time.Time  `db:"fecha_inicio" json:"start_date"`
	EndDate     *time.Time `db:"fecha_fin" json:"end_date,omitempty"`
	Destination string     `db:"destino" json:"destination"`
	SourceFile  *string    `db:"archivo_origen" json:"source_file,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// ShipmentFilter narrows shipment listings.
type ShipmentFilter struct {
	ClientID int64
	Search   string
	Page     int
	PageSize int
}

// Pagination describes a paged listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
