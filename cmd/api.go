package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/ledger"
	"github.com/stoneage-tools/ap-inbox/internal/model"
	"github.com/stoneage-tools/ap-inbox/pkg/epicor"
)

// newAPIMux builds the read-through HTTP surface served alongside the
// poller: processed-message reads for the mailbox taskpane and the manual
// invoice commit endpoint.
func newAPIMux(led ledger.Ledger, erp epicor.Client) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/messages", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		results, err := led.Recent(r.Context(), limit)
		if err != nil {
			zap.L().Error("list messages failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ledger read failed"})
			return
		}
		if results == nil {
			results = []*model.ProcessingResult{}
		}
		writeJSON(w, http.StatusOK, results)
	})

	mux.HandleFunc("GET /api/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		result, err := led.Find(r.Context(), r.PathValue("id"))
		if err != nil {
			zap.L().Error("get message failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ledger read failed"})
			return
		}
		if result == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "message not processed"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("GET /api/invoices/{num}", func(w http.ResponseWriter, r *http.Request) {
		result, err := erp.LookupInvoice(r.Context(), r.PathValue("num"))
		if err != nil {
			zap.L().Error("invoice lookup failed", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "ERP lookup failed"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("POST /api/invoices/commit", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VendorID string                  `json:"vendor_id"`
			Invoice  *model.ExtractedInvoice `json:"invoice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.VendorID == "" || req.Invoice == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "vendor_id and invoice are required"})
			return
		}

		outcome, err := erp.CreateInvoice(r.Context(), epicor.CreateInvoiceRequest{
			VendorID: req.VendorID,
			Invoice:  req.Invoice,
		})
		if err != nil {
			zap.L().Error("manual commit failed", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		status := http.StatusOK
		if !outcome.Success {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, outcome)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
