// Package matching implements the two greedy bill-to-invoice matchers
// (SKU-centric and invoice-centric) plus the batch driver that runs them
// over many bills.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/qinqiang2000/redflush-matcher/model"
	"github.com/qinqiang2000/redflush-matcher/requirements"
	"github.com/qinqiang2000/redflush-matcher/resultsink"
	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gorm.io/gorm"
)

// ErrMissingBill is returned when a bill id does not resolve. Callers in
// v1 (SKU-centric batch) treat this as non-fatal and skip the bill;
// callers in v2 (invoice-centric batch) surface it as a failure.
var ErrMissingBill = errors.New("missing bill")

const preferredChunkSize = 1000

func wrapMissing(billID int64, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: bill %d", ErrMissingBill, billID)
	}
	return fmt.Errorf("load bill %d: %w", billID, err)
}

// SKUCentricMatcher runs the scarcity-ordered, per-SKU matcher (C5).
type SKUCentricMatcher struct {
	Store  *model.Store
	Sink   resultsink.Sink
	Logger *slog.Logger
}

// MatchBill runs the SKU-centric algorithm for one bill, persisting
// records via Sink as they're produced and returning the bill's stats.
func (m *SKUCentricMatcher) MatchBill(ctx context.Context, billID int64) (model.MatchStats, error) {
	stats := model.MatchStats{BillID: billID}

	bill, items, err := m.Store.LoadBill(ctx, billID)
	if err != nil {
		return stats, wrapMissing(billID, err)
	}
	if len(items) == 0 {
		return stats, nil
	}

	tracker := requirements.FromBillItems(items)
	stats.TotalSKUs = len(tracker.RequiredSKUs())

	type summary struct {
		item model.BillItem
		stat model.SKUStat
	}
	summaries := make([]summary, 0, len(items))
	for _, item := range items {
		sku := strings.TrimSpace(item.ProductCode)
		if sku == "" {
			continue
		}
		stat, err := m.Store.StatForProduct(ctx, bill.BuyerTaxID, bill.SellerTaxID, sku)
		if err != nil {
			return stats, err
		}
		summaries = append(summaries, summary{item: item, stat: stat})
	}

	// Scarcest and cheapest first; stable so duplicate skus retain their
	// original relative order (spec §8 invariant 6).
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].stat, summaries[j].stat
		if a.Count != b.Count {
			return a.Count < b.Count
		}
		return a.SumAmount.LessThan(b.SumAmount)
	})

	preferredInvoices := orderedmap.New[int64, struct{}]()
	candidateInvoices := make(map[int64]struct{})
	matchedByProduct := make(map[string]decimal.Decimal)
	var records []model.MatchResult

	flush := func(force bool) error {
		for len(records) >= 1000 || (force && len(records) > 0) {
			end := len(records)
			if end > 1000 {
				end = 1000
			}
			if err := m.Sink.Put(ctx, records[:end]); err != nil {
				return err
			}
			records = records[end:]
		}
		return nil
	}

	for i, s := range summaries {
		if i == 0 || i%100 == 0 {
			m.Logger.Info("sku_centric_progress", "bill_id", billID, "sku_index", i, "total", len(summaries))
		}

		// Per-bill-item target: each line's target is its own |amount|, not
		// the sku's pooled demand, less whatever earlier lines with the same
		// sku already matched. A duplicate-sku line whose amount does not
		// exceed that accumulated match is skipped and gets no record.
		sku := strings.TrimSpace(s.item.ProductCode)
		target := s.item.Amount.Abs()
		already := matchedByProduct[sku]
		remaining := target.Sub(already)
		if remaining.Sign() <= 0 {
			continue
		}

		seen := make(map[int64]bool)
		var merged []model.InvoiceItem

		if preferredInvoices.Len() > 0 {
			ids := make([]int64, 0, preferredInvoices.Len())
			for pair := preferredInvoices.Oldest(); pair != nil; pair = pair.Next() {
				ids = append(ids, pair.Key)
			}
			for start := 0; start < len(ids); start += preferredChunkSize {
				end := start + preferredChunkSize
				if end > len(ids) {
					end = len(ids)
				}
				chunk := ids[start:end]
				got, err := m.Store.ListCandidateItemsBySKU(ctx, bill.BuyerTaxID, bill.SellerTaxID, sku, chunk, false)
				if err != nil {
					return stats, err
				}
				for _, it := range got {
					candidateInvoices[it.InvoiceID] = struct{}{}
					if !seen[it.ID] {
						seen[it.ID] = true
						merged = append(merged, it)
					}
				}
			}
		}

		allItems, err := m.Store.ListCandidateItemsBySKU(ctx, bill.BuyerTaxID, bill.SellerTaxID, sku, nil, true)
		if err != nil {
			return stats, err
		}
		for _, it := range allItems {
			candidateInvoices[it.InvoiceID] = struct{}{}
			if !seen[it.ID] {
				seen[it.ID] = true
				merged = append(merged, it)
			}
		}

		for _, it := range merged {
			if remaining.Sign() <= 0 {
				break
			}
			use := minDecimal(it.Amount, remaining)
			if use.Sign() <= 0 {
				continue
			}

			records = append(records, buildMatchResult(bill, s.item, it, use))
			preferredInvoices.Set(it.InvoiceID, struct{}{})
			matchedByProduct[sku] = matchedByProduct[sku].Add(use)
			remaining = remaining.Sub(use)
			tracker.Reduce(sku, use) // diagnostics only: aggregate outstanding for stats/residual logging below
			stats.TotalMatchedAmount = stats.TotalMatchedAmount.Add(use)
		}

		if err := flush(false); err != nil {
			return stats, err
		}
	}

	if err := flush(true); err != nil {
		return stats, err
	}

	stats.InvoicesUsed = preferredInvoices.Len()
	stats.TotalCandidateInvoices = len(candidateInvoices)
	stats.MatchedSKUs = stats.TotalSKUs - len(tracker.Remaining())

	for sku, outstanding := range tracker.Remaining() {
		m.Logger.Warn("sku_centric_residual", "bill_id", billID, "sku", sku, "outstanding", outstanding.String())
	}

	if p, ok := m.Sink.(resultsink.OutputPather); ok {
		path := p.OutputPathFor(billID)
		stats.OutputFile = &path
	}

	return stats, nil
}

func buildMatchResult(bill *model.Bill, billItem model.BillItem, item model.InvoiceItem, use decimal.Decimal) model.MatchResult {
	q := item.Quantity
	return model.MatchResult{
		BillID:                bill.ID,
		BuyerTaxID:            bill.BuyerTaxID,
		SellerTaxID:           bill.SellerTaxID,
		ProductCode:           strings.TrimSpace(item.ProductCode),
		InvoiceID:             item.InvoiceID,
		InvoiceItemID:         item.ID,
		InvoiceQuantity:       item.Quantity,
		BillAmount:            billItem.Amount,
		InvoiceOriginalAmount: item.Amount,
		MatchAmount:           use,
		BillUnitPrice:         billItem.UnitPrice,
		BillQuantity:          billItem.Quantity,
		InvoiceUnitPrice:      item.UnitPrice,
		InvoiceItemQuantity:   &q,
		MatchedAt:             time.Now().UTC(),
	}
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal { return decimal.Min(a, b) }
