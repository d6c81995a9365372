package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/packing-qr-api/internal/models"
	"github.com/noah-isme/packing-qr-api/internal/repository"
	"github.com/noah-isme/packing-qr-api/pkg/database"
)

// memStore is an in-memory hierarchy whose transactions run one at a time and
// restore a snapshot when the callback fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	shipments map[int64]models.Shipment
	articles  map[int64]models.Article
	cartons   []models.Carton
	codes     []models.QRCode
	nextID    int64

	failInsertAt int
	inserts      int
	txCount      int
}

func newMemStore() *memStore {
	return &memStore{shipments: map[int64]models.Shipment{}, articles: map[int64]models.Article{}}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addShipment(code, client, destination string) models.Shipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := models.Shipment{ID: m.id(), Code: code, ClientName: client, Destination: destination, StartDate: time.Now()}
	m.shipments[s.ID] = s
	return s
}

func (m *memStore) addArticle(shipmentID, id int64, ref string, cartons int) models.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 {
		id = m.id()
	} else if id > m.nextID {
		m.nextID = id
	}
	a := models.Article{ID: id, ShipmentID: shipmentID, Reference: ref, DescriptionES: "Silla", CartonCount: cartons}
	m.articles[a.ID] = a
	return a
}

func (m *memStore) codeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

func (m *memStore) cartonCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cartons)
}

func (m *memStore) WithTx(ctx context.Context, fn database.TxFunc) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	m.txCount++
	cartons := append([]models.Carton(nil), m.cartons...)
	codes := append([]models.QRCode(nil), m.codes...)
	shipments := make(map[int64]models.Shipment, len(m.shipments))
	for k, v := range m.shipments {
		shipments[k] = v
	}
	articles := make(map[int64]models.Article, len(m.articles))
	for k, v := range m.articles {
		articles[k] = v
	}
	m.mu.Unlock()

	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.cartons, m.codes, m.shipments, m.articles = cartons, codes, shipments, articles
		m.mu.Unlock()
		return err
	}
	return nil
}

type memShipments struct{ *memStore }

func (s memShipments) Create(ctx context.Context, exec sqlx.ExtContext, shipment *models.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.shipments {
		if existing.Code == shipment.Code {
			return repository.ErrDuplicate
		}
	}
	shipment.ID = s.id()
	s.shipments[shipment.ID] = *shipment
	return nil
}

func (s memShipments) FindByCode(ctx context.Context, code string) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.shipments {
		if sh.Code == code {
			out := sh
			return &out, nil
		}
	}
	return nil, nil
}

func (s memShipments) List(ctx context.Context, filter models.ShipmentFilter) ([]models.Shipment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Shipment, 0, len(s.shipments))
	for _, sh := range s.shipments {
		out = append(out, sh)
	}
	return out, len(out), nil
}

func (s memShipments) UpdateCorrections(ctx context.Context, id int64, endDate *time.Time, destination *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[id]
	if !ok {
		return sql.ErrNoRows
	}
	if endDate != nil {
		sh.EndDate = endDate
	}
	if destination != nil {
		sh.Destination = *destination
	}
	s.shipments[id] = sh
	return nil
}

type memArticles struct{ *memStore }

func (s memArticles) BulkCreate(ctx context.Context, exec sqlx.ExtContext, shipmentID int64, articles []models.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range articles {
		articles[i].ID = s.id()
		articles[i].ShipmentID = shipmentID
		s.articles[articles[i].ID] = articles[i]
	}
	return nil
}

func (s memArticles) FindByID(ctx context.Context, id int64) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s memArticles) FindWithShipment(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ArticleContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, nil
	}
	return &models.ArticleContext{Article: a, ShipmentCode: s.shipments[a.ShipmentID].Code}, nil
}

func (s memArticles) LockForIssuance(ctx context.Context, exec sqlx.ExtContext, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.articles[id]
	return ok, nil
}

func (s memArticles) ListByShipment(ctx context.Context, shipmentID int64) ([]models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Article
	for _, a := range s.articles {
		if a.ShipmentID == shipmentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memArticles) UpdateImage(ctx context.Context, id int64, url *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.ImageURL = url
	s.articles[id] = a
	return nil
}

func (s memArticles) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return sql.ErrNoRows
	}
	keepCartons := s.cartons[:0]
	dropped := map[int64]bool{}
	for _, c := range s.cartons {
		if c.ArticleID == id {
			dropped[c.ID] = true
			continue
		}
		keepCartons = append(keepCartons, c)
	}
	s.cartons = keepCartons
	keepCodes := s.codes[:0]
	for _, q := range s.codes {
		if !dropped[q.CartonID] {
			keepCodes = append(keepCodes, q)
		}
	}
	s.codes = keepCodes
	delete(s.articles, id)
	return nil
}

type memCartons struct{ *memStore }

func (s memCartons) BulkCreate(ctx context.Context, exec sqlx.ExtContext, articleID int64, total int, contents string) ([]models.Carton, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Carton, 0, total)
	for seq := 1; seq <= total; seq++ {
		c := models.Carton{ID: s.id(), ArticleID: articleID, Sequence: seq, TotalCount: total, Contents: contents}
		s.cartons = append(s.cartons, c)
		out = append(out, c)
	}
	return out, nil
}

func (s memCartons) FindByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) ([]models.Carton, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartonsOf(articleID), nil
}

func (s memCartons) LockByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) ([]models.Carton, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartonsOf(articleID), nil
}

func (m *memStore) cartonsOf(articleID int64) []models.Carton {
	var out []models.Carton
	for _, c := range m.cartons {
		if c.ArticleID == articleID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (m *memStore) cartonByID(id int64) (models.Carton, bool) {
	for _, c := range m.cartons {
		if c.ID == id {
			return c, true
		}
	}
	return models.Carton{}, false
}

type memCodes struct{ *memStore }

func (s memCodes) FindCodesByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) ([]models.QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QRCode
	for _, c := range s.cartonsOf(articleID) {
		for _, q := range s.codes {
			if q.CartonID == c.ID {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func (s memCodes) FindByID(ctx context.Context, id int64) (*models.QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.codes {
		if q.ID == id {
			return &q, nil
		}
	}
	return nil, nil
}

func (s memCodes) FindCodeByValue(ctx context.Context, value string) (*models.QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.codes {
		if q.Code == value {
			return &q, nil
		}
	}
	return nil, nil
}

func (s memCodes) detail(q models.QRCode) models.QRDetail {
	c, _ := s.cartonByID(q.CartonID)
	a := s.articles[c.ArticleID]
	sh := s.shipments[a.ShipmentID]
	return models.QRDetail{
		QRCode:         q,
		CartonSequence: c.Sequence,
		CartonTotal:    c.TotalCount,
		CartonContents: c.Contents,
		ArticleID:      a.ID,
		ArticleRef:     a.Reference,
		DescriptionES:  a.DescriptionES,
		ShipmentID:     sh.ID,
		ShipmentCode:   sh.Code,
		ClientName:     sh.ClientName,
		Destination:    sh.Destination,
	}
}

func (s memCodes) FindDetailByValue(ctx context.Context, value string) (*models.QRDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.codes {
		if q.Code == value {
			d := s.detail(q)
			return &d, nil
		}
	}
	return nil, nil
}

func (s memCodes) FindCodesByShipmentCode(ctx context.Context, shipmentCode string) ([]models.QRDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QRDetail
	for _, q := range s.codes {
		d := s.detail(q)
		if d.ShipmentCode == shipmentCode {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArticleID != out[j].ArticleID {
			return out[i].ArticleID < out[j].ArticleID
		}
		return out[i].CartonSequence < out[j].CartonSequence
	})
	return out, nil
}

func (s memCodes) DeleteCodesByArticle(ctx context.Context, exec sqlx.ExtContext, articleID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := map[int64]bool{}
	for _, c := range s.cartonsOf(articleID) {
		owned[c.ID] = true
	}
	var deleted int64
	keep := make([]models.QRCode, 0, len(s.codes))
	for _, q := range s.codes {
		if owned[q.CartonID] {
			deleted++
			continue
		}
		keep = append(keep, q)
	}
	s.codes = keep
	return deleted, nil
}

func (s memCodes) Insert(ctx context.Context, exec sqlx.ExtContext, code *models.QRCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.failInsertAt > 0 && s.inserts == s.failInsertAt {
		return errors.New("connection reset")
	}
	for _, q := range s.codes {
		if q.Code == code.Code || q.CartonID == code.CartonID {
			return repository.ErrDuplicate
		}
	}
	code.ID = s.id()
	s.codes = append(s.codes, *code)
	return nil
}

func (s memCodes) update(id int64, fn func(q *models.QRCode)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.codes {
		if s.codes[i].ID == id {
			fn(&s.codes[i])
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s memCodes) UpdateCode(ctx context.Context, id int64, value string, state models.QRState, at time.Time) error {
	return s.update(id, func(q *models.QRCode) {
		q.Code, q.State, q.GeneratedAt = value, state, at
		q.PrintedAt, q.ScannedAt, q.ScannedBy, q.ImagePath = nil, nil, nil, nil
	})
}

func (s memCodes) MarkScanned(ctx context.Context, id int64, at time.Time, by *string) error {
	return s.update(id, func(q *models.QRCode) {
		q.State = models.QRStateScanned
		q.ScannedAt = &at
		if by != nil {
			q.ScannedBy = by
		}
	})
}

func (s memCodes) MarkPrinted(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	var changed int64
	for _, id := range ids {
		if err := s.update(id, func(q *models.QRCode) { q.PrintedAt = &at }); err == nil {
			changed++
		}
	}
	return changed, nil
}

func (s memCodes) UpdateRendering(ctx context.Context, id int64, meta models.QRRenderingMeta) error {
	return s.update(id, func(q *models.QRCode) {
		path := meta.ImagePath
		q.ImagePath, q.Format, q.Size = &path, meta.Format, meta.Size
	})
}

func (s memCodes) FindDuplicates(ctx context.Context) ([]models.DuplicateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCode := map[string][]int64{}
	for _, q := range s.codes {
		byCode[q.Code] = append(byCode[q.Code], q.ID)
	}
	var out []models.DuplicateGroup
	for code, ids := range byCode {
		if len(ids) > 1 {
			out = append(out, models.DuplicateGroup{Code: code, IDs: ids, Count: len(ids)})
		}
	}
	return out, nil
}

func (s memCodes) Stats(ctx context.Context, filter models.QRStatsFilter) (*models.QRStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &models.QRStats{}
	for _, q := range s.codes {
		d := s.detail(q)
		if filter.ShipmentCode != "" && d.ShipmentCode != filter.ShipmentCode {
			continue
		}
		if filter.ArticleID > 0 && d.ArticleID != filter.ArticleID {
			continue
		}
		stats.Total++
		switch q.State {
		case models.QRStateGenerated:
			stats.Generated++
		case models.QRStateRegenerated:
			stats.Regenerated++
		case models.QRStateScanned:
			stats.Scanned++
		}
		if q.PrintedAt != nil {
			stats.Printed++
		}
	}
	return stats, nil
}

func newTestEngine(store *memStore) *QRService {
	return NewQRService(store, memArticles{store}, memCartons{store}, memCodes{store}, nil, QRServiceConfig{}, nil, nil)
}
