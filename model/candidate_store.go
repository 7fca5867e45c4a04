package model

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// SKUStat is the (count, sumAmount) summary C5 uses to order bill items by
// scarcity before matching.
type SKUStat struct {
	ProductCode string
	Count       int
	SumAmount   decimal.Decimal
}

// LoadBill returns a bill and its items. gorm.ErrRecordNotFound surfaces
// unchanged so callers can treat a missing bill as the "missing-bill"
// error kind.
func (s *Store) LoadBill(ctx context.Context, billID int64) (*Bill, []BillItem, error) {
	var bill Bill
	if err := s.db.WithContext(ctx).First(&bill, billID).Error; err != nil {
		return nil, nil, err
	}
	var items []BillItem
	if err := s.db.WithContext(ctx).Where("bill_id = ?", billID).Find(&items).Error; err != nil {
		return nil, nil, fmt.Errorf("load bill items for bill %d: %w", billID, err)
	}
	return &bill, items, nil
}

// StatForProduct returns the count and summed amount of candidate invoice
// items backing one product code for a (buyer, seller) pair.
func (s *Store) StatForProduct(ctx context.Context, buyer, seller, productCode string) (SKUStat, error) {
	stat := SKUStat{ProductCode: productCode, SumAmount: decimal.Zero}
	row := s.db.WithContext(ctx).
		Table("invoice_item").
		Select("COUNT(*) AS cnt, COALESCE(SUM(invoice_item.amount), 0) AS total").
		Joins("JOIN invoice ON invoice.id = invoice_item.invoice_id").
		Where("invoice.buyer_tax_id = ? AND invoice.seller_tax_id = ? AND invoice.total_amount > 0", buyer, seller).
		Where("invoice_item.product_code = ? AND invoice_item.amount > 0", productCode).
		Row()

	var cnt int
	var total decimal.Decimal
	if err := row.Scan(&cnt, &total); err != nil {
		return stat, fmt.Errorf("stat for product %s: %w", productCode, err)
	}
	stat.Count = cnt
	stat.SumAmount = total
	return stat, nil
}

// candidateItemsQuery applies the shared candidate predicate: same party
// pair, positive invoice total, positive item amount.
func (s *Store) candidateItemsQuery(ctx context.Context, buyer, seller string) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("invoice_item").
		Select("invoice_item.*").
		Joins("JOIN invoice ON invoice.id = invoice_item.invoice_id").
		Where("invoice.buyer_tax_id = ? AND invoice.seller_tax_id = ? AND invoice.total_amount > 0", buyer, seller).
		Where("invoice_item.amount > 0")
}

// ListCandidateItemsBySKU is the one-shot shape used by the SKU-centric
// matcher (C5): candidate items for a single product code, optionally
// restricted to a set of invoice ids (the "preferred invoices" layer),
// ordered ascending or descending by amount.
func (s *Store) ListCandidateItemsBySKU(ctx context.Context, buyer, seller, productCode string, invoiceIDs []int64, descending bool) ([]InvoiceItem, error) {
	q := s.candidateItemsQuery(ctx, buyer, seller).Where("invoice_item.product_code = ?", productCode)
	if invoiceIDs != nil {
		q = q.Where("invoice_item.invoice_id IN ?", invoiceIDs)
	}
	if descending {
		q = q.Order("invoice_item.amount DESC")
	} else {
		q = q.Order("invoice_item.amount ASC")
	}
	var items []InvoiceItem
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list candidate items for sku %s: %w", productCode, err)
	}
	return items, nil
}

// ListCandidateInvoiceIDs is phase (a) of the two-phase shape: every
// candidate invoice id for the (buyer, seller) pair.
func (s *Store) ListCandidateInvoiceIDs(ctx context.Context, buyer, seller string) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&Invoice{}).
		Where("buyer_tax_id = ? AND seller_tax_id = ? AND total_amount > 0", buyer, seller).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list candidate invoice ids: %w", err)
	}
	return ids, nil
}

// ListItemsForInvoiceBatch is phase (b): item rows for a bounded batch of
// invoice ids, filtered to the requested sku list.
func (s *Store) ListItemsForInvoiceBatch(ctx context.Context, invoiceIDs []int64, skus []string) ([]InvoiceItem, error) {
	var items []InvoiceItem
	err := s.db.WithContext(ctx).
		Where("invoice_id IN ? AND product_code IN ? AND amount > 0", invoiceIDs, skus).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list items for invoice batch: %w", err)
	}
	return items, nil
}

// FetchAllCandidateItems drives the bounded two-phase fetch described in
// spec §4.2/§5: phase (a) lists candidate invoice ids, phase (b) fans out
// batches of batchSize ids across up to concurrency goroutines and merges
// the results. Order is immaterial; the scoring context re-indexes.
func (s *Store) FetchAllCandidateItems(ctx context.Context, buyer, seller string, skus []string, batchSize, concurrency int) ([]InvoiceItem, error) {
	ids, err := s.ListCandidateInvoiceIDs(ctx, buyer, seller)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 || len(skus) == 0 {
		return nil, nil
	}

	batches := chunkInt64(ids, batchSize)
	results := make([][]InvoiceItem, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			items, err := s.ListItemsForInvoiceBatch(gctx, batch, skus)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]InvoiceItem, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}

// InsertMatchResults persists records in chunks of at most 1000 rows,
// each chunk under its own 30s timeout (spec §4.7).
func (s *Store) InsertMatchResults(ctx context.Context, records []MatchResult) error {
	const chunkSize = 1000
	const chunkTimeout = 30 * time.Second

	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		chunkCtx, cancel := context.WithTimeout(ctx, chunkTimeout)
		err := s.db.WithContext(chunkCtx).CreateInBatches(chunk, chunkSize).Error
		cancel()
		if err != nil {
			return fmt.Errorf("insert match results chunk [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func chunkInt64(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
