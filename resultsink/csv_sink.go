package resultsink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/qinqiang2000/redflush-matcher/model"
	"github.com/shopspring/decimal"
)

var csvHeader = []string{
	"bill_id", "buyer_tax_id", "seller_tax_id", "product_code",
	"invoice_id", "invoice_item_id", "invoice_quantity",
	"bill_amount", "invoice_original_amount", "match_amount",
	"bill_unit_price", "bill_quantity", "invoice_unit_price", "invoice_item_quantity",
	"matched_at",
}

// CSVSink spools match records to <LogDir>/match_results_<bill-id>.csv,
// one record per line in the §6 column order, decimals rendered in
// canonical form, optional fields empty when absent, timestamps RFC 3339.
// The directory is created if missing; Put may be called repeatedly for
// the same bill (it appends).
type CSVSink struct {
	LogDir string

	mu sync.Mutex
}

func (s *CSVSink) Put(ctx context.Context, records []model.MatchResult) error {
	if len(records) == 0 {
		return nil
	}
	byBill := make(map[int64][]model.MatchResult)
	var order []int64
	for _, r := range records {
		if _, ok := byBill[r.BillID]; !ok {
			order = append(order, r.BillID)
		}
		byBill[r.BillID] = append(byBill[r.BillID], r)
	}
	for _, billID := range order {
		if err := s.appendToFile(billID, byBill[billID]); err != nil {
			return err
		}
	}
	return nil
}

// OutputPathFor returns the CSV path for a bill, for MatchStats.OutputFile.
func (s *CSVSink) OutputPathFor(billID int64) string {
	return filepath.Join(s.LogDir, fmt.Sprintf("match_results_%d.csv", billID))
}

func (s *CSVSink) appendToFile(billID int64, records []model.MatchResult) error {
	if err := os.MkdirAll(s.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir %s: %w", s.LogDir, err)
	}
	path := s.OutputPathFor(billID)

	s.mu.Lock()
	defer s.mu.Unlock()

	writeHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv spool %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := w.Write(csvRow(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func csvRow(r model.MatchResult) []string {
	return []string{
		strconv.FormatInt(r.BillID, 10),
		r.BuyerTaxID,
		r.SellerTaxID,
		r.ProductCode,
		strconv.FormatInt(r.InvoiceID, 10),
		strconv.FormatInt(r.InvoiceItemID, 10),
		r.InvoiceQuantity.String(),
		r.BillAmount.String(),
		r.InvoiceOriginalAmount.String(),
		r.MatchAmount.String(),
		optionalDecimal(r.BillUnitPrice),
		optionalDecimal(r.BillQuantity),
		optionalDecimal(r.InvoiceUnitPrice),
		optionalDecimal(r.InvoiceItemQuantity),
		r.MatchedAt.Format(time.RFC3339),
	}
}

func optionalDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
