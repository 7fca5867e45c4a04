package requirements

import (
	"testing"

	"github.com/qinqiang2000/redflush-matcher/model"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFromBillItems_SumsAbsoluteAmountsPerCode(t *testing.T) {
	items := []model.BillItem{
		{ProductCode: "SKU-1", Amount: dec("10.00")},
		{ProductCode: " SKU-1 ", Amount: dec("5.50")},
		{ProductCode: "SKU-2", Amount: dec("-3.00")}, // red-flush: abs value counts as demand
		{ProductCode: "  ", Amount: dec("100.00")},   // blank code skipped
	}
	tr := FromBillItems(items)

	if got := tr.Outstanding("SKU-1"); !got.Equal(dec("15.50")) {
		t.Fatalf("SKU-1 outstanding = %s, want 15.50", got)
	}
	if got := tr.Outstanding("SKU-2"); !got.Equal(dec("3.00")) {
		t.Fatalf("SKU-2 outstanding = %s, want 3.00", got)
	}
	skus := tr.RequiredSKUs()
	if len(skus) != 2 {
		t.Fatalf("RequiredSKUs = %v, want 2 entries", skus)
	}
}

func TestReduce_RemovesEntryOnceSatisfied(t *testing.T) {
	tr := FromBillItems([]model.BillItem{{ProductCode: "SKU-1", Amount: dec("10.00")}})

	tr.Reduce("SKU-1", dec("4.00"))
	if tr.Satisfied() {
		t.Fatal("expected unsatisfied after partial reduce")
	}
	if got := tr.Outstanding("SKU-1"); !got.Equal(dec("6.00")) {
		t.Fatalf("outstanding = %s, want 6.00", got)
	}

	tr.Reduce("SKU-1", dec("6.00"))
	if !tr.Satisfied() {
		t.Fatal("expected satisfied after exact reduce")
	}
	if got := tr.Outstanding("SKU-1"); !got.IsZero() {
		t.Fatalf("outstanding after satisfy = %s, want 0", got)
	}
}

func TestReduce_OvershootRemovesEntryRatherThanGoingNegative(t *testing.T) {
	tr := FromBillItems([]model.BillItem{{ProductCode: "SKU-1", Amount: dec("10.00")}})
	tr.Reduce("SKU-1", dec("999.00"))
	if !tr.Satisfied() {
		t.Fatal("expected satisfied after overshooting reduce")
	}
}

func TestReduce_UnknownSKUIsNoOp(t *testing.T) {
	tr := FromBillItems([]model.BillItem{{ProductCode: "SKU-1", Amount: dec("10.00")}})
	tr.Reduce("SKU-NOPE", dec("1.00"))
	if got := tr.Outstanding("SKU-1"); !got.Equal(dec("10.00")) {
		t.Fatalf("unrelated sku mutated: %s", got)
	}
}

func TestRemaining_ReturnsIndependentCopy(t *testing.T) {
	tr := FromBillItems([]model.BillItem{{ProductCode: "SKU-1", Amount: dec("10.00")}})
	snap := tr.Remaining()
	snap["SKU-1"] = dec("0")
	if got := tr.Outstanding("SKU-1"); !got.Equal(dec("10.00")) {
		t.Fatalf("mutating snapshot leaked into tracker: %s", got)
	}
}
