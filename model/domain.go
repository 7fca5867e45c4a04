package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is the transactional document whose SKU lines must be backed by
// invoice amounts. Immutable during a match.
type Bill struct {
	ID          int64 `gorm:"primarykey"`
	BuyerTaxID  string
	SellerTaxID string
}

func (Bill) TableName() string { return "bill" }

// BillItem is one line of demand on a Bill. Multiple items may share a
// ProductCode; the matcher collapses them into a single demand per code.
type BillItem struct {
	ID          int64 `gorm:"primarykey"`
	BillID      int64 `gorm:"index"`
	EntryID     string
	ProductCode string
	Amount      decimal.Decimal // may be negative: a red-flush
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
}

func (BillItem) TableName() string { return "bill_item" }

// Invoice is a candidate source of backing amounts. Only invoices whose
// buyer/seller match the bill and whose TotalAmount is positive are
// considered candidates.
type Invoice struct {
	ID          int64 `gorm:"primarykey"`
	BuyerTaxID  string `gorm:"index:idx_invoice_parties"`
	SellerTaxID string `gorm:"index:idx_invoice_parties"`
	TotalAmount decimal.Decimal
}

func (Invoice) TableName() string { return "invoice" }

// InvoiceItem is one line of supply on an Invoice. Only items with a
// positive Amount are candidates.
type InvoiceItem struct {
	ID          int64 `gorm:"primarykey"`
	InvoiceID   int64 `gorm:"index"`
	ProductCode string `gorm:"index"`
	Quantity    decimal.Decimal
	Amount      decimal.Decimal
	UnitPrice   *decimal.Decimal
}

func (InvoiceItem) TableName() string { return "invoice_item" }

// MatchResult is the append-only join output of a match pass. Field order
// mirrors the 15-column layout the CSV spool and the batch insert both
// use: bill identity, product code, invoice identity, amounts, the
// optional unit-price/quantity context, and the match timestamp.
//
// InvoiceItemQuantity duplicates InvoiceQuantity on purpose: the source
// system records the invoice item's quantity unprorated even when
// MatchAmount is smaller than the item's original amount (see the
// matching package's doc comment on that behaviour).
type MatchResult struct {
	ID                    int64 `gorm:"primarykey"`
	BillID                int64 `gorm:"index"`
	BuyerTaxID            string
	SellerTaxID           string
	ProductCode           string
	InvoiceID             int64 `gorm:"index"`
	InvoiceItemID         int64
	InvoiceQuantity       decimal.Decimal
	BillAmount            decimal.Decimal
	InvoiceOriginalAmount decimal.Decimal
	MatchAmount           decimal.Decimal
	BillUnitPrice         *decimal.Decimal
	BillQuantity          *decimal.Decimal
	InvoiceUnitPrice      *decimal.Decimal
	InvoiceItemQuantity   *decimal.Decimal
	MatchedAt             time.Time
}

func (MatchResult) TableName() string { return "match_result" }

// MatchStats summarises one bill's match pass. Exposed identically by
// both the SKU-centric and invoice-centric matchers (see SPEC_FULL.md §9
// note 3 for why C5 no longer withholds TotalMatchedAmount/OutputFile).
type MatchStats struct {
	BillID                 int64   `json:"bill_id"`
	TotalSKUs              int     `json:"total_skus"`
	MatchedSKUs            int     `json:"matched_skus"`
	InvoicesUsed           int     `json:"invoices_used"`
	TotalMatchedAmount     decimal.Decimal `json:"total_matched_amount"`
	TotalCandidateInvoices int     `json:"total_candidate_invoices"`
	OutputFile             *string `json:"output_file,omitempty"`
}
