package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(h.instrument)

	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(h.requireAdmin)
	admin.HandleFunc("/payments/pending", h.PendingPayments).Methods("GET")
	admin.HandleFunc("/payments/{id}/verify", h.VerifyPayment).Methods("POST")
	admin.HandleFunc("/withdrawals/{id}/status", h.UpdateWithdrawalStatus).Methods("POST")

	user := apiV1.NewRoute().Subrouter()
	user.Use(h.requireUser)
	user.HandleFunc("/payments", h.InitiatePayment).Methods("POST")
	user.HandleFunc("/payments", h.ListPayments).Methods("GET")
	user.HandleFunc("/payments/{id}", h.GetPayment).Methods("GET")
	user.HandleFunc("/payments/{id}/reference", h.SubmitReference).Methods("POST")
	user.HandleFunc("/balance", h.GetBalance).Methods("GET")
	user.HandleFunc("/balance/entries", h.ListEntries).Methods("GET")
	user.HandleFunc("/withdrawals", h.CreateWithdrawal).Methods("POST")
	user.HandleFunc("/withdrawals", h.ListWithdrawals).Methods("GET")
	user.HandleFunc("/withdrawals/{id}", h.GetWithdrawal).Methods("GET")
	user.HandleFunc("/gifts", h.SendGift).Methods("POST")
	user.HandleFunc("/gifts", h.ListGifts).Methods("GET")
	user.HandleFunc("/gifts/{id}/redeem", h.RedeemGift).Methods("POST")
	user.HandleFunc("/subscription", h.GetSubscription).Methods("GET")

	return r
}
