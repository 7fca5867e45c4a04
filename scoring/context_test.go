package scoring

import (
	"testing"

	"github.com/qinqiang2000/redflush-matcher/model"
	"github.com/qinqiang2000/redflush-matcher/requirements"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func billItems(pairs ...[2]string) []model.BillItem {
	items := make([]model.BillItem, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, model.BillItem{ProductCode: p[0], Amount: dec(p[1])})
	}
	return items
}

func TestFindBestInvoiceLazy_PrefersHigherScarcityBonus(t *testing.T) {
	// SKU-A appears on a single invoice (scarce); SKU-B appears on two.
	// Invoice 1 offers only SKU-A, invoice 2 offers only SKU-B. With equal
	// available amounts, invoice 1 should score higher due to the scarcity
	// bonus (1000/frequency) for the rarer sku.
	items := []model.InvoiceItem{
		{ID: 1, InvoiceID: 1, ProductCode: "SKU-A", Amount: dec("50.00"), Quantity: dec("1")},
		{ID: 2, InvoiceID: 2, ProductCode: "SKU-B", Amount: dec("50.00"), Quantity: dec("1")},
		{ID: 3, InvoiceID: 3, ProductCode: "SKU-B", Amount: dec("50.00"), Quantity: dec("1")},
	}
	tr := requirements.FromBillItems(billItems([2]string{"SKU-A", "50.00"}, [2]string{"SKU-B", "50.00"}))

	ctx := NewContext(items)
	ctx.InitHeap(tr)

	best, ok := ctx.FindBestInvoiceLazy(tr)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if best != 1 {
		t.Fatalf("best invoice = %d, want 1 (rarer sku should win scarcity bonus)", best)
	}
}

func TestConsumeItem_NeverGoesNegativeAndCapsAtRequested(t *testing.T) {
	items := []model.InvoiceItem{
		{ID: 1, InvoiceID: 1, ProductCode: "SKU-A", Amount: dec("10.00"), Quantity: dec("1")},
	}
	ctx := NewContext(items)

	state, consumed := ctx.ConsumeItem(1, "SKU-A", dec("4.00"))
	if state == nil || !consumed.Equal(dec("4.00")) {
		t.Fatalf("first consume = %v, %s", state, consumed)
	}
	if !state.Remaining.Equal(dec("6.00")) {
		t.Fatalf("remaining after first consume = %s, want 6.00", state.Remaining)
	}

	// Requesting more than what's left caps at remaining, never negative.
	state2, consumed2 := ctx.ConsumeItem(1, "SKU-A", dec("999.00"))
	if state2 == nil || !consumed2.Equal(dec("6.00")) {
		t.Fatalf("second consume = %v, %s, want 6.00", state2, consumed2)
	}
	if !state2.Remaining.IsZero() {
		t.Fatalf("remaining after exhausting item = %s, want 0", state2.Remaining)
	}

	// Now exhausted: further consume attempts find nothing.
	state3, consumed3 := ctx.ConsumeItem(1, "SKU-A", dec("1.00"))
	if state3 != nil || !consumed3.IsZero() {
		t.Fatalf("consume on exhausted item = %v, %s, want nil, 0", state3, consumed3)
	}
}

func TestFindBestInvoiceLazy_EmptyWhenNoOutstandingDemand(t *testing.T) {
	items := []model.InvoiceItem{
		{ID: 1, InvoiceID: 1, ProductCode: "SKU-A", Amount: dec("10.00"), Quantity: dec("1")},
	}
	tr := requirements.FromBillItems(nil)
	ctx := NewContext(items)
	ctx.InitHeap(tr)

	if _, ok := ctx.FindBestInvoiceLazy(tr); ok {
		t.Fatal("expected no candidate when tracker has no demand")
	}
}

func TestFindBestInvoiceLazy_EmptyOnceDemandSatisfied(t *testing.T) {
	items := []model.InvoiceItem{
		{ID: 1, InvoiceID: 1, ProductCode: "SKU-A", Amount: dec("5.00"), Quantity: dec("1")},
		{ID: 2, InvoiceID: 2, ProductCode: "SKU-A", Amount: dec("5.00"), Quantity: dec("1")},
	}
	tr := requirements.FromBillItems(billItems([2]string{"SKU-A", "5.00"}))
	ctx := NewContext(items)
	ctx.InitHeap(tr)

	best, ok := ctx.FindBestInvoiceLazy(tr)
	if !ok {
		t.Fatal("expected a candidate")
	}
	_, consumed := ctx.ConsumeItem(best, "SKU-A", dec("5.00"))
	tr.Reduce("SKU-A", consumed)

	if !tr.Satisfied() {
		t.Fatal("expected demand satisfied after consuming the full amount")
	}
	if _, ok := ctx.FindBestInvoiceLazy(tr); ok {
		t.Fatal("expected no further candidate once demand is satisfied")
	}
}

func TestAvailableItems_ExcludesExhaustedItems(t *testing.T) {
	items := []model.InvoiceItem{
		{ID: 1, InvoiceID: 1, ProductCode: "SKU-A", Amount: dec("5.00"), Quantity: dec("1")},
		{ID: 2, InvoiceID: 1, ProductCode: "SKU-B", Amount: dec("5.00"), Quantity: dec("1")},
	}
	ctx := NewContext(items)
	ctx.ConsumeItem(1, "SKU-A", dec("5.00"))

	avail := ctx.AvailableItems(1)
	if len(avail) != 1 || avail[0].ProductCode != "SKU-B" {
		t.Fatalf("AvailableItems = %+v, want only SKU-B", avail)
	}
}
