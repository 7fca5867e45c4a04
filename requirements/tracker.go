// Package requirements tracks per-SKU outstanding demand for one bill's
// match pass.
package requirements

import (
	"sort"
	"strings"

	"github.com/qinqiang2000/redflush-matcher/model"
	"github.com/shopspring/decimal"
)

// Tracker is a mapping from product code to a positive outstanding
// decimal amount. Entries with outstanding <= 0 are removed eagerly;
// Reduce is the only mutator.
type Tracker struct {
	outstanding map[string]decimal.Decimal
}

// FromBillItems walks the bill items, trims the product code, skips empty
// codes, and sums absolute amounts per code.
func FromBillItems(items []model.BillItem) *Tracker {
	t := &Tracker{outstanding: make(map[string]decimal.Decimal)}
	for _, item := range items {
		sku := strings.TrimSpace(item.ProductCode)
		if sku == "" {
			continue
		}
		t.outstanding[sku] = t.outstanding[sku].Add(item.Amount.Abs())
	}
	return t
}

// RequiredSKUs returns every product code with outstanding demand.
func (t *Tracker) RequiredSKUs() []string {
	skus := make([]string, 0, len(t.outstanding))
	for sku := range t.outstanding {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus
}

// Outstanding returns the remaining demand for a sku, or zero if none.
func (t *Tracker) Outstanding(sku string) decimal.Decimal {
	if v, ok := t.outstanding[sku]; ok {
		return v
	}
	return decimal.Zero
}

// Reduce lowers the outstanding demand for sku by amount. The entry is
// removed once outstanding <= 0; reducing from zero/missing is a no-op.
func (t *Tracker) Reduce(sku string, amount decimal.Decimal) {
	cur, ok := t.outstanding[sku]
	if !ok {
		return
	}
	cur = cur.Sub(amount)
	if cur.Sign() <= 0 {
		delete(t.outstanding, sku)
		return
	}
	t.outstanding[sku] = cur
}

// Satisfied reports whether every sku's demand has been reduced to zero.
func (t *Tracker) Satisfied() bool {
	return len(t.outstanding) == 0
}

// Remaining reports the skus still outstanding, for diagnostics/warning
// logs.
func (t *Tracker) Remaining() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.outstanding))
	for k, v := range t.outstanding {
		out[k] = v
	}
	return out
}
