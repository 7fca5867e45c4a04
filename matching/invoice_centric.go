package matching

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/qinqiang2000/redflush-matcher/model"
	"github.com/qinqiang2000/redflush-matcher/requirements"
	"github.com/qinqiang2000/redflush-matcher/resultsink"
	"github.com/qinqiang2000/redflush-matcher/scoring"
	"github.com/shopspring/decimal"
)

// InvoiceCentricMatcher runs the whole-invoice greedy selection driven by
// the scoring context's lazy max-heap (C6).
type InvoiceCentricMatcher struct {
	Store             *model.Store
	Sink              resultsink.Sink
	Logger            *slog.Logger
	FetchBatchSize    int
	FanOutConcurrency int
}

// MatchBill runs the invoice-centric algorithm for one bill.
func (m *InvoiceCentricMatcher) MatchBill(ctx context.Context, billID int64) (model.MatchStats, error) {
	stats := model.MatchStats{BillID: billID}

	bill, items, err := m.Store.LoadBill(ctx, billID)
	if err != nil {
		return stats, wrapMissing(billID, err)
	}
	if len(items) == 0 {
		return stats, nil
	}

	tracker := requirements.FromBillItems(items)
	skuList := tracker.RequiredSKUs()
	stats.TotalSKUs = len(skuList)

	skuToBillItem := make(map[string]model.BillItem, len(skuList))
	for _, it := range items {
		sku := strings.TrimSpace(it.ProductCode)
		if sku == "" {
			continue
		}
		if _, ok := skuToBillItem[sku]; !ok {
			skuToBillItem[sku] = it
		}
	}

	candidates, err := m.Store.FetchAllCandidateItems(ctx, bill.BuyerTaxID, bill.SellerTaxID, skuList, m.FetchBatchSize, m.FanOutConcurrency)
	if err != nil {
		return stats, err
	}

	invoicesSeen := make(map[int64]struct{})
	for _, c := range candidates {
		invoicesSeen[c.InvoiceID] = struct{}{}
	}
	stats.TotalCandidateInvoices = len(invoicesSeen)

	sc := scoring.NewContext(candidates)
	sc.InitHeap(tracker)

	var records []model.MatchResult
	for !tracker.Satisfied() {
		invoiceID, ok := sc.FindBestInvoiceLazy(tracker)
		if !ok {
			m.Logger.Warn("invoice_centric_residual_break", "bill_id", billID)
			break
		}
		for _, item := range sc.AvailableItems(invoiceID) {
			outstanding := tracker.Outstanding(item.ProductCode)
			if outstanding.Sign() <= 0 {
				continue
			}
			amount := decimal.Min(item.Remaining, outstanding)
			if amount.Sign() <= 0 {
				continue
			}
			_, consumed := sc.ConsumeItem(invoiceID, item.ProductCode, amount)
			if consumed.Sign() <= 0 {
				continue
			}

			billItem := skuToBillItem[item.ProductCode]
			records = append(records, buildMatchResultFromState(bill, billItem, item, invoiceID, consumed))
			tracker.Reduce(item.ProductCode, consumed)
			stats.TotalMatchedAmount = stats.TotalMatchedAmount.Add(consumed)
		}
	}

	if len(records) > 0 {
		if err := m.Sink.Put(ctx, records); err != nil {
			return stats, err
		}
	}

	stats.InvoicesUsed = sc.UsedCount()
	stats.MatchedSKUs = stats.TotalSKUs - len(tracker.Remaining())

	for sku, outstanding := range tracker.Remaining() {
		m.Logger.Warn("invoice_centric_residual", "bill_id", billID, "sku", sku, "outstanding", outstanding.String())
	}

	if p, ok := m.Sink.(resultsink.OutputPather); ok {
		path := p.OutputPathFor(billID)
		stats.OutputFile = &path
	}

	return stats, nil
}

// buildMatchResultFromState joins a consumed invoice-item state back to
// its originating bill item. InvoiceItemQuantity intentionally repeats
// the item's raw quantity rather than pro-rating it to the consumed
// amount — see the Open Question this preserves in SPEC_FULL.md §9.
func buildMatchResultFromState(bill *model.Bill, billItem model.BillItem, item *scoring.ItemState, invoiceID int64, consumed decimal.Decimal) model.MatchResult {
	q := item.Quantity
	return model.MatchResult{
		BillID:                bill.ID,
		BuyerTaxID:            bill.BuyerTaxID,
		SellerTaxID:           bill.SellerTaxID,
		ProductCode:           item.ProductCode,
		InvoiceID:             invoiceID,
		InvoiceItemID:         item.ItemID,
		InvoiceQuantity:       item.Quantity,
		BillAmount:            billItem.Amount,
		InvoiceOriginalAmount: item.OriginalAmount,
		MatchAmount:           consumed,
		BillUnitPrice:         billItem.UnitPrice,
		BillQuantity:          billItem.Quantity,
		InvoiceUnitPrice:      item.UnitPrice,
		InvoiceItemQuantity:   &q,
		MatchedAt:             time.Now().UTC(),
	}
}
