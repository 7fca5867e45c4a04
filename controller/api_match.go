package controller

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/qinqiang2000/redflush-matcher/matching"
)

type matchBatchRequest struct {
	BillIDs []int64 `json:"bill_ids"`
}

// billMatchStatsDTO mirrors model.MatchStats for the v2 wire response.
type billMatchStatsDTO struct {
	BillID                 int64   `json:"bill_id"`
	TotalSKUs              int     `json:"total_skus"`
	MatchedSKUs            int     `json:"matched_skus"`
	InvoicesUsed           int     `json:"invoices_used"`
	TotalMatchedAmount     string  `json:"total_matched_amount"`
	TotalCandidateInvoices int     `json:"total_candidate_invoices"`
	OutputFile             *string `json:"output_file,omitempty"`
}

func (ctrl *controller) health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// matchBatchV1 is the SKU-centric endpoint. A missing bill is logged and
// skipped rather than failing the batch (spec §7).
func (ctrl *controller) matchBatchV1(c echo.Context) error {
	var req matchBatchRequest
	if err := c.Bind(&req); err != nil {
		return respondFailure(c, http.StatusInternalServerError, "invalid request body: "+err.Error())
	}

	m := &matching.SKUCentricMatcher{Store: ctrl.store, Sink: ctrl.sink, Logger: ctrl.logger}
	driver := &matching.Driver{Matcher: m, Logger: ctrl.logger, Locker: ctrl.locker}

	stats, err := driver.RunBatch(c.Request().Context(), req.BillIDs, true)
	if err != nil {
		return respondFailure(c, http.StatusInternalServerError, err.Error())
	}

	return respondOK(c, "Successfully matched "+strconv.Itoa(len(stats))+" bills", nil)
}

// matchBatchV2 is the invoice-centric endpoint. Any per-bill error aborts
// the remainder of the batch (spec §7).
func (ctrl *controller) matchBatchV2(c echo.Context) error {
	var req matchBatchRequest
	if err := c.Bind(&req); err != nil {
		return respondFailure(c, http.StatusInternalServerError, "invalid request body: "+err.Error())
	}

	m := &matching.InvoiceCentricMatcher{
		Store:             ctrl.store,
		Sink:              ctrl.sink,
		Logger:            ctrl.logger,
		FetchBatchSize:    ctrl.fetchBatchSize,
		FanOutConcurrency: ctrl.fanOutConcurrency,
	}
	driver := &matching.Driver{Matcher: m, Logger: ctrl.logger, Locker: ctrl.locker}

	stats, err := driver.RunBatch(c.Request().Context(), req.BillIDs, false)
	if err != nil {
		return respondFailure(c, http.StatusInternalServerError, err.Error())
	}

	dtos := make([]billMatchStatsDTO, len(stats))
	for i, s := range stats {
		dtos[i] = billMatchStatsDTO{
			BillID:                 s.BillID,
			TotalSKUs:              s.TotalSKUs,
			MatchedSKUs:            s.MatchedSKUs,
			InvoicesUsed:           s.InvoicesUsed,
			TotalMatchedAmount:     s.TotalMatchedAmount.String(),
			TotalCandidateInvoices: s.TotalCandidateInvoices,
			OutputFile:             s.OutputFile,
		}
	}

	return respondOK(c, "Successfully matched "+strconv.Itoa(len(stats))+" bills", dtos)
}
