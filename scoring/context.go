// Package scoring implements the invoice-selection core shared by both
// matcher variants: an inverted SKU index over candidate invoice items, a
// scarcity-weighted integer scoring function, and the lazy max-heap that
// picks the best invoice without eagerly re-scoring every candidate on
// every requirement change.
package scoring

import (
	"container/heap"
	"strings"

	"github.com/qinqiang2000/redflush-matcher/model"
	"github.com/qinqiang2000/redflush-matcher/requirements"
	"github.com/shopspring/decimal"
)

// ItemState is one candidate invoice item's mutable remaining-amount
// state. Remaining starts equal to OriginalAmount, never goes negative,
// and only decreases via ConsumeItem.
type ItemState struct {
	ItemID         int64
	InvoiceID      int64
	ProductCode    string
	Quantity       decimal.Decimal
	OriginalAmount decimal.Decimal
	Remaining      decimal.Decimal
	UnitPrice      *decimal.Decimal
}

var cents = decimal.NewFromInt(100)

// invoiceScore is one heap entry. It may be stale; callers must recompute
// on pop (see Context.FindBestInvoiceLazy).
type invoiceScore struct {
	invoiceID int64
	score     int64
	skuCount  int
}

// scoreHeap is a max-heap ordered by score, tie-broken by skuCount.
type scoreHeap []invoiceScore

func (h scoreHeap) Len() int { return len(h) }
func (h scoreHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].skuCount > h[j].skuCount
}
func (h scoreHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x any)   { *h = append(*h, x.(invoiceScore)) }
func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Context owns every InvoiceItemState built from one bill's candidate
// fetch. It must not be reused across bills: skuIndex and skuFrequency
// are built once at construction and never shrink.
type Context struct {
	invoices     map[int64][]*ItemState
	skuIndex     map[string]map[int64]struct{}
	skuFrequency map[string]int
	usedInvoices map[int64]struct{}
	heap         scoreHeap
}

// NewContext consumes the candidate items fetched from the store and
// builds the inverted index. Items with an empty product code are
// skipped.
func NewContext(items []model.InvoiceItem) *Context {
	c := &Context{
		invoices:     make(map[int64][]*ItemState),
		skuIndex:     make(map[string]map[int64]struct{}),
		skuFrequency: make(map[string]int),
		usedInvoices: make(map[int64]struct{}),
	}
	for _, it := range items {
		sku := strings.TrimSpace(it.ProductCode)
		if sku == "" {
			continue
		}
		state := &ItemState{
			ItemID:         it.ID,
			InvoiceID:      it.InvoiceID,
			ProductCode:    sku,
			Quantity:       it.Quantity,
			OriginalAmount: it.Amount,
			Remaining:      it.Amount,
			UnitPrice:      it.UnitPrice,
		}
		c.invoices[it.InvoiceID] = append(c.invoices[it.InvoiceID], state)

		if _, ok := c.skuIndex[sku]; !ok {
			c.skuIndex[sku] = make(map[int64]struct{})
		}
		if _, ok := c.skuIndex[sku][it.InvoiceID]; !ok {
			c.skuIndex[sku][it.InvoiceID] = struct{}{}
			c.skuFrequency[sku]++
		}
	}
	return c
}

// score computes an invoice's current (intScore, skuCount) against reqs.
// Returns (0, 0) when the invoice has no items whose sku still has
// outstanding demand.
func (c *Context) score(invoiceID int64, reqs *requirements.Tracker) (int64, int) {
	var total int64
	var skuCount int
	for _, item := range c.invoices[invoiceID] {
		if item.Remaining.Sign() <= 0 {
			continue
		}
		outstanding := reqs.Outstanding(item.ProductCode)
		if outstanding.Sign() <= 0 {
			continue
		}
		skuCount++
		available := decimal.Min(item.Remaining, outstanding)
		total += available.Mul(cents).IntPart()
		if freq := c.skuFrequency[item.ProductCode]; freq > 0 {
			total += int64(1000 / freq)
		}
	}
	if skuCount == 0 {
		return 0, 0
	}
	return total, skuCount
}

// InitHeap seeds the lazy heap from the union of skuIndex[sku] over every
// sku reqs still requires. Call once per bill.
func (c *Context) InitHeap(reqs *requirements.Tracker) {
	c.heap = c.heap[:0]
	candidates := make(map[int64]struct{})
	for _, sku := range reqs.RequiredSKUs() {
		for invoiceID := range c.skuIndex[sku] {
			candidates[invoiceID] = struct{}{}
		}
	}
	for invoiceID := range candidates {
		s, k := c.score(invoiceID, reqs)
		if s > 0 {
			c.heap = append(c.heap, invoiceScore{invoiceID: invoiceID, score: s, skuCount: k})
		}
	}
	heap.Init(&c.heap)
}

// FindBestInvoiceLazy pops the heap's top entry, recomputes its score,
// and either returns it (if it's still the best) or re-pushes the fresh
// score and keeps looking. Returns (0, false) once the heap empties
// without a positive score.
func (c *Context) FindBestInvoiceLazy(reqs *requirements.Tracker) (int64, bool) {
	for c.heap.Len() > 0 {
		top := heap.Pop(&c.heap).(invoiceScore)
		s, k := c.score(top.invoiceID, reqs)
		if s <= 0 {
			continue
		}
		if c.heap.Len() == 0 {
			return top.invoiceID, true
		}
		u := c.heap[0]
		if s >= u.score {
			return top.invoiceID, true
		}
		heap.Push(&c.heap, invoiceScore{invoiceID: top.invoiceID, score: s, skuCount: k})
	}
	return 0, false
}

// ConsumeItem locates the first item of invoiceID with the given sku and
// positive remaining, reduces it by min(amount, remaining), and returns
// the updated state plus the amount actually consumed. Returns (nil,
// zero) if no such item exists.
func (c *Context) ConsumeItem(invoiceID int64, sku string, amount decimal.Decimal) (*ItemState, decimal.Decimal) {
	for _, item := range c.invoices[invoiceID] {
		if item.ProductCode != sku || item.Remaining.Sign() <= 0 {
			continue
		}
		consumed := decimal.Min(amount, item.Remaining)
		item.Remaining = item.Remaining.Sub(consumed)
		c.usedInvoices[invoiceID] = struct{}{}
		return item, consumed
	}
	return nil, decimal.Zero
}

// AvailableItems returns invoiceID's items with positive remaining, in
// construction order.
func (c *Context) AvailableItems(invoiceID int64) []*ItemState {
	all := c.invoices[invoiceID]
	out := make([]*ItemState, 0, len(all))
	for _, item := range all {
		if item.Remaining.Sign() > 0 {
			out = append(out, item)
		}
	}
	return out
}

// UsedCount returns how many distinct invoices were ever consumed from.
func (c *Context) UsedCount() int { return len(c.usedInvoices) }

// TotalCount returns how many distinct invoices were indexed.
func (c *Context) TotalCount() int { return len(c.invoices) }
