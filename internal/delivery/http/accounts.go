package http

import (
	"bytes"
	"net/http"
	"time"
)

func (h *Handler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.svc.Customers.List(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) handleCustomerDetails(w http.ResponseWriter, r *http.Request) {
	me, err := h.svc.Customers.Details(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (h *Handler) handleExportCustomers(w http.ResponseWriter, r *http.Request) {
	// Buffer so a failure halfway through still gets a proper error status.
	var buf bytes.Buffer
	if err := h.svc.Customers.ExportCSV(r.Context(), actorFrom(r.Context()), &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="customers-`+time.Now().Format("20060102")+`.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "weekly"
	}

	report, err := h.svc.Reports.Sales(r.Context(), actorFrom(r.Context()), period)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handlePopularItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Reports.PopularItems(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
