// sandbox-rails emulates the card and crypto providers for local
// development: intents always succeed and verify lookups report
// success, so the full settlement flow can be exercised without
// provider credentials.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/bookserve/settlement/internal/logging"
)

func main() {
	logging.Init("sandbox-rails", "info", os.Getenv("APP_ENV"))

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	// Card rail surface.
	mux.HandleFunc("POST /transaction/initialize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reference string `json:"reference"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"status": false, "message": "reference required"})
			return
		}
		writeJSON(w, map[string]any{
			"status": true,
			"data":   map[string]string{"access_code": "sandbox_" + uuid.NewString()},
		})
	})
	mux.HandleFunc("GET /transaction/verify/{reference}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status": true,
			"data": map[string]any{
				"reference":        r.PathValue("reference"),
				"status":           "success",
				"id":               1,
				"gateway_response": "Approved",
			},
		})
	})

	mux.HandleFunc("POST /transfer", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reference string `json:"reference"`
			Recipient string `json:"recipient"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" || req.Recipient == "" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"status": false, "message": "reference and recipient required"})
			return
		}
		writeJSON(w, map[string]any{"status": true, "message": "Transfer queued"})
	})

	// Crypto rail surface.
	mux.HandleFunc("POST /invoice", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrderID     string `json:"order_id"`
			PriceAmount string `json:"price_amount"`
			PayCurrency string `json:"pay_currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{"message": "order_id required"})
			return
		}
		writeJSON(w, map[string]any{
			"id":           uuid.NewString(),
			"invoice_url":  "https://sandbox.invalid/invoice/" + req.OrderID,
			"pay_amount":   req.PriceAmount,
			"pay_currency": req.PayCurrency,
		})
	})
	mux.HandleFunc("POST /payout", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrderID string `json:"order_id"`
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" || req.Address == "" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{"message": "order_id and address required"})
			return
		}
		writeJSON(w, map[string]string{"id": uuid.NewString(), "status": "sending"})
	})
	mux.HandleFunc("GET /payment", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"order_id":       r.URL.Query().Get("order_id"),
			"payment_status": "finished",
			"payment_id":     uuid.NewString(),
		})
	})

	addr := ":8081"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}

	slog.Info("sandbox rails started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
