package model

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrateForTesting(db))
	return db
}

func TestListCandidateItemsBySKU_OrdersByAmountAndRespectsInvoiceIDFilter(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, &Config{})
	ctx := context.Background()

	require.NoError(t, db.Create(&Invoice{ID: 1, BuyerTaxID: "B", SellerTaxID: "S", TotalAmount: mustDec(t, "100")}).Error)
	require.NoError(t, db.Create(&Invoice{ID: 2, BuyerTaxID: "B", SellerTaxID: "S", TotalAmount: mustDec(t, "100")}).Error)
	require.NoError(t, db.Create(&InvoiceItem{ID: 1, InvoiceID: 1, ProductCode: "SKU-1", Amount: mustDec(t, "30"), Quantity: mustDec(t, "1")}).Error)
	require.NoError(t, db.Create(&InvoiceItem{ID: 2, InvoiceID: 2, ProductCode: "SKU-1", Amount: mustDec(t, "10"), Quantity: mustDec(t, "1")}).Error)

	asc, err := store.ListCandidateItemsBySKU(ctx, "B", "S", "SKU-1", nil, false)
	require.NoError(t, err)
	require.Len(t, asc, 2)
	require.True(t, asc[0].Amount.Equal(mustDec(t, "10")))
	require.True(t, asc[1].Amount.Equal(mustDec(t, "30")))

	desc, err := store.ListCandidateItemsBySKU(ctx, "B", "S", "SKU-1", nil, true)
	require.NoError(t, err)
	require.True(t, desc[0].Amount.Equal(mustDec(t, "30")))

	restricted, err := store.ListCandidateItemsBySKU(ctx, "B", "S", "SKU-1", []int64{2}, false)
	require.NoError(t, err)
	require.Len(t, restricted, 1)
	require.Equal(t, int64(2), restricted[0].InvoiceID)
}

func TestCandidateItemsQuery_ExcludesNonPositiveInvoiceOrItemAmounts(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, &Config{})
	ctx := context.Background()

	require.NoError(t, db.Create(&Invoice{ID: 1, BuyerTaxID: "B", SellerTaxID: "S", TotalAmount: mustDec(t, "0")}).Error) // non-positive total excluded
	require.NoError(t, db.Create(&Invoice{ID: 2, BuyerTaxID: "B", SellerTaxID: "S", TotalAmount: mustDec(t, "50")}).Error)
	require.NoError(t, db.Create(&InvoiceItem{ID: 1, InvoiceID: 1, ProductCode: "SKU-1", Amount: mustDec(t, "10"), Quantity: mustDec(t, "1")}).Error)
	require.NoError(t, db.Create(&InvoiceItem{ID: 2, InvoiceID: 2, ProductCode: "SKU-1", Amount: mustDec(t, "-5"), Quantity: mustDec(t, "1")}).Error) // non-positive item excluded
	require.NoError(t, db.Create(&InvoiceItem{ID: 3, InvoiceID: 2, ProductCode: "SKU-1", Amount: mustDec(t, "5"), Quantity: mustDec(t, "1")}).Error)

	items, err := store.ListCandidateItemsBySKU(ctx, "B", "S", "SKU-1", nil, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(3), items[0].ID)
}

func TestFetchAllCandidateItems_MergesAcrossBatchesAndFiltersToRequestedSKUs(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, &Config{})
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, db.Create(&Invoice{ID: i, BuyerTaxID: "B", SellerTaxID: "S", TotalAmount: mustDec(t, "10")}).Error)
		require.NoError(t, db.Create(&InvoiceItem{ID: i, InvoiceID: i, ProductCode: "SKU-1", Amount: mustDec(t, "1"), Quantity: mustDec(t, "1")}).Error)
	}
	require.NoError(t, db.Create(&Invoice{ID: 6, BuyerTaxID: "B", SellerTaxID: "S", TotalAmount: mustDec(t, "10")}).Error)
	require.NoError(t, db.Create(&InvoiceItem{ID: 6, InvoiceID: 6, ProductCode: "SKU-OTHER", Amount: mustDec(t, "1"), Quantity: mustDec(t, "1")}).Error)

	// batchSize=2 forces 3 batches fanned out across 2 goroutines.
	items, err := store.FetchAllCandidateItems(ctx, "B", "S", []string{"SKU-1"}, 2, 2)
	require.NoError(t, err)
	require.Len(t, items, 5)
	for _, it := range items {
		require.Equal(t, "SKU-1", it.ProductCode)
	}
}

func TestInsertMatchResults_ChunksAtThousandRows(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, &Config{})
	ctx := context.Background()

	records := make([]MatchResult, 0, 1500)
	for i := 0; i < 1500; i++ {
		records = append(records, MatchResult{
			BillID: 1, InvoiceID: int64(i), InvoiceItemID: int64(i),
			InvoiceQuantity: mustDec(t, "1"), BillAmount: mustDec(t, "1"),
			InvoiceOriginalAmount: mustDec(t, "1"), MatchAmount: mustDec(t, "1"),
		})
	}
	require.NoError(t, store.InsertMatchResults(ctx, records))

	var count int64
	require.NoError(t, db.Model(&MatchResult{}).Count(&count).Error)
	require.Equal(t, int64(1500), count)
}

func TestChunkInt64(t *testing.T) {
	chunks := chunkInt64([]int64{1, 2, 3, 4, 5}, 2)
	require.Equal(t, [][]int64{{1, 2}, {3, 4}, {5}}, chunks)
}
