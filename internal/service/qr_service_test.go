package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/packing-qr-api/internal/models"
	appErrors "github.com/noah-isme/packing-qr-api/pkg/errors"
	"github.com/noah-isme/packing-qr-api/pkg/qrcode"
)

const exampleShipment = "PL-20250820-001"

func seedExample(t *testing.T) (*memStore, models.Article) {
	t.Helper()
	store := newMemStore()
	shipment := store.addShipment(exampleShipment, "Muebles Lopez", "Valencia")
	article := store.addArticle(shipment.ID, 17, "CH-200", 3)
	return store, article
}

func TestQRServiceIssueForArticleCreatesHierarchy(t *testing.T) {
	store, article := seedExample(t)
	svc := newTestEngine(store)

	result, err := svc.IssueForArticle(context.Background(), IssueRequest{ArticleID: article.ID})
	require.NoError(t, err)
	assert.Equal(t, exampleShipment, result.ShipmentCode)
	assert.Equal(t, 3, result.CartonsCreated)
	assert.Zero(t, result.Replaced)
	require.Len(t, result.Codes, 3)

	for i, code := range result.Codes {
		parsed, ok := qrcode.Parse(code.Code)
		require.True(t, ok, code.Code)
		assert.False(t, parsed.Regenerated)
		assert.Equal(t, exampleShipment, parsed.ShipmentCode)
		assert.Equal(t, int64(17), parsed.ArticleID)
		assert.Equal(t, i+1, parsed.CartonSeq)
		assert.Equal(t, models.QRStateGenerated, code.State)
		assert.Equal(t, "png", code.Format)
	}
	assert.Equal(t, 3, store.cartonCount())
	assert.Equal(t, 3, store.codeCount())
}

func TestQRServiceIssueForArticleConflictsWithoutForce(t *testing.T) {
	store, article := seedExample(t)
	svc := newTestEngine(store)

	_, err := svc.IssueForArticle(context.Background(), IssueRequest{ArticleID: article.ID})
	require.NoError(t, err)

	_, err = svc.IssueForArticle(context.Background(), IssueRequest{ArticleID: article.ID})
	require.Error(t, err)
	var conflict *IssuanceConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Len(t, conflict.Existing, 3)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, 3, store.codeCount())
	assert.Equal(t, 3, store.cartonCount())
}

func TestQRServiceForceRegenerateReplacesCodes(t *testing.T) {
	store, article := seedExample(t)
	svc := newTestEngine(store)

	first, err := svc.IssueForArticle(context.Background(), IssueRequest{ArticleID: article.ID})
	require.NoError(t, err)

	second, err := svc.IssueForArticle(context.Background(), IssueRequest{ArticleID: article.ID, ForceRegenerate: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), second.Replaced)
	assert.Zero(t, second.CartonsCreated)
	require.Len(t, second.Codes, 3)
	for i := range second.Codes {
		assert.NotEqual(t, first.Codes[i].Code, second.Codes[i].Code)
		assert.Equal(t, first.Codes[i].CartonID, second.Codes[i].CartonID)
	}
	assert.Equal(t, 3, store.codeCount())
	assert.Equal(t, 3, store.cartonCount())
}

func TestQRServiceConcurrentIssuanceYieldsOneWinner(t *testing.T) {
	store, article := seedExample(t)
	svc := newTestEngine(store)

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.IssueForArticle(context.Background(), IssueRequest{ArticleID: article.ID})
			mu.Lock()
			defer mu.Unlock()
			var conflict *IssuanceConflictError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &conflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 3, store.codeCount())
	assert.Equal(t, 3, store.cartonCount())
}

func TestQRServiceIssueRollsBackOnInsertFailure(t *testing.T) {
	store, article := seedExample(t)
	store.failInsertAt = 2
	svc := newTestEngine(store)

	_, err := svc.IssueForArticle(context.Background(), IssueRequest{ArticleID: article.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrStorage))
	assert.Zero(t, store.codeCount())
	assert.Zero(t, store.cartonCount())
}

func TestQRServiceIssueRejectsBadInput(t *testing.T) {
	store := newMemStore()
	shipment := store.addShipment(exampleShipment, "Cliente", "Madrid")
	empty := store.addArticle(shipment.ID, 0, "EMPTY", 0)
	broken := store.addArticle(shipment.ID, 0, "GAP", 3)
	store.cartons = append(store.cartons,
		models.Carton{ID: 900, ArticleID: broken.ID, Sequence: 1, TotalCount: 3},
		models.Carton{ID: 901, ArticleID: broken.ID, Sequence: 3, TotalCount: 3},
	)
	svc := newTestEngine(store)
	ctx := context.Background()

	_, err := svc.IssueForArticle(ctx, IssueRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.IssueForArticle(ctx, IssueRequest{ArticleID: 4040})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.IssueForArticle(ctx, IssueRequest{ArticleID: empty.ID})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.IssueForArticle(ctx, IssueRequest{ArticleID: broken.ID})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, store.codeCount())
}

func TestQRServiceRegenerateCodeKeepsIdentifiers(t *testing.T) {
	store, article := seedExample(t)
	svc := newTestEngine(store)
	ctx := context.Background()

	issued, err := svc.IssueForArticle(ctx, IssueRequest{ArticleID: article.ID})
	require.NoError(t, err)
	original := issued.Codes[1]

	regenerated, err := svc.RegenerateCode(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, regenerated.ID)
	assert.Equal(t, models.QRStateRegenerated, regenerated.State)
	assert.NotEqual(t, original.Code, regenerated.Code)

	parsed, ok := qrcode.Parse(regenerated.Code)
	require.True(t, ok)
	assert.True(t, parsed.Regenerated)
	assert.Equal(t, exampleShipment, parsed.ShipmentCode)
	assert.Equal(t, int64(17), parsed.ArticleID)
	assert.Equal(t, 2, parsed.CartonSeq)

	_, err = svc.Lookup(ctx, original.Code)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 3, store.codeCount())

	_, err = svc.RegenerateCode(ctx, 99999)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestQRServiceRegenerateCodeRedrawsOnCollision(t *testing.T) {
	store, article := seedExample(t)
	ctx := context.Background()
	issued, err := newTestEngine(store).IssueForArticle(ctx, IssueRequest{ArticleID: article.ID})
	require.NoError(t, err)

	fixed := time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)
	pinned := qrcode.NewGeneratorWith(func() time.Time { return fixed }, zeroReader{})
	svc := NewQRService(store, memArticles{store}, memCartons{store}, memCodes{store}, pinned, QRServiceConfig{}, nil, nil)

	first, err := svc.RegenerateCode(ctx, issued.Codes[0].ID)
	require.NoError(t, err)

	// the pinned generator can only produce first.Code again for this carton
	_, err = svc.RegenerateCode(ctx, first.ID)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	stored, err := memCodes{store}.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Code, stored.Code)
}

func TestQRServiceRecordScan(t *testing.T) {
	store, article := seedExample(t)
	svc := newTestEngine(store)
	ctx := context.Background()

	issued, err := svc.IssueForArticle(ctx, IssueRequest{ArticleID: article.ID})
	require.NoError(t, err)

	operator := "dock-3"
	detail, err := svc.RecordScan(ctx, ScanRequest{Code: issued.Codes[0].Code, ScannedBy: &operator})
	require.NoError(t, err)
	assert.Equal(t, models.QRStateScanned, detail.State)
	assert.Equal(t, 1, detail.CartonSequence)
	assert.Equal(t, 3, detail.CartonTotal)
	assert.Equal(t, exampleShipment, detail.ShipmentCode)
	require.NotNil(t, detail.ScannedAt)
	require.NotNil(t, detail.ScannedBy)
	assert.Equal(t, operator, *detail.ScannedBy)

	for _, sibling := range issued.Codes[1:] {
		stored, err := memCodes{store}.FindByID(ctx, sibling.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.QRStateGenerated, stored.State)
		assert.Nil(t, stored.ScannedAt)
	}

	again, err := svc.RecordScan(ctx, ScanRequest{Code: issued.Codes[0].Code})
	require.NoError(t, err)
	assert.Equal(t, models.QRStateScanned, again.State)
	require.NotNil(t, again.ScannedBy)
	assert.Equal(t, operator, *again.ScannedBy)

	_, err = svc.RecordScan(ctx, ScanRequest{Code: "not-a-code"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	unknown, err := qrcode.NewGenerator().Generate(exampleShipment, 17, 9, false)
	require.NoError(t, err)
	_, err = svc.RecordScan(ctx, ScanRequest{Code: unknown})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestQRServiceRecordScanRejectsMismatchedHierarchy(t *testing.T) {
	store, article := seedExample(t)
	svc := newTestEngine(store)
	ctx := context.Background()

	issued, err := svc.IssueForArticle(ctx, IssueRequest{ArticleID: article.ID})
	require.NoError(t, err)

	forged, err := qrcode.NewGenerator().Generate(exampleShipment, 18, 2, false)
	require.NoError(t, err)
	require.NoError(t, memCodes{store}.UpdateCode(ctx, issued.Codes[1].ID, forged, models.QRStateGenerated, issued.Codes[1].GeneratedAt))

	_, err = svc.RecordScan(ctx, ScanRequest{Code: forged})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestQRServiceMarkPrintedAndStats(t *testing.T) {
	store, article := seedExample(t)
	svc := newTestEngine(store)
	ctx := context.Background()

	issued, err := svc.IssueForArticle(ctx, IssueRequest{ArticleID: article.ID})
	require.NoError(t, err)

	changed, err := svc.MarkPrinted(ctx, []int64{issued.Codes[0].ID, issued.Codes[1].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	_, err = svc.RegenerateCode(ctx, issued.Codes[2].ID)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, models.QRStatsFilter{ShipmentCode: exampleShipment})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Generated)
	assert.Equal(t, 1, stats.Regenerated)
	assert.Equal(t, 2, stats.Printed)

	groups, err := svc.FindDuplicates(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestIssuanceConflictErrorStatus(t *testing.T) {
	err := normaliseStoreError(&IssuanceConflictError{ArticleID: 5}, "ignored")
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.Contains(t, err.Error(), "article 5")
}
