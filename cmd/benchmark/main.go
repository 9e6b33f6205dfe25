package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	targetURL   string
	adminToken  string
	concurrency int
	duration    time.Duration
	workload    string
	totalUsers  int
	replayRate  float64
	rejectRate  float64
)

// counters is shared by all workers.
type counters struct {
	requests atomic.Uint64
	created  atomic.Uint64 // 201
	replayed atomic.Uint64 // 200, idempotent replay
	conflict atomic.Uint64 // 409
	short    atomic.Uint64 // 422, insufficient balance
	released atomic.Uint64 // rejected by the admin call
	errors   atomic.Uint64
}

var stats counters

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.StringVar(&adminToken, "admin-token", os.Getenv("ADMIN_TOKEN"), "Admin bearer token used to reject withdrawals")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&totalUsers, "users", 1000, "Number of seeded users (ids 1..n)")
	flag.Float64Var(&replayRate, "replay", 0.1, "Share of requests that resend the previous Idempotency-Key")
	flag.Float64Var(&rejectRate, "reject", 0.5, "Share of created withdrawals rejected to release funds")
}

func main() {
	flag.Parse()
	logrus.Infof("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	began := time.Now()
	deadline := began.Add(duration)
	var wg sync.WaitGroup
	for n := 0; n < concurrency; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(deadline)
		}()
	}
	wg.Wait()

	report(summarize(time.Since(began)))
}

type lastRequest struct {
	key  string
	user int64
	body []byte
}

func runWorker(deadline time.Time) {
	client := &http.Client{Timeout: 5 * time.Second}
	var last *lastRequest

	for time.Now().Before(deadline) {
		req := last
		if req == nil || rand.Float64() >= replayRate {
			body, _ := json.Marshal(map[string]interface{}{
				"amount":          "1.00",
				"payment_details": "benchmark payout",
			})
			req = &lastRequest{key: uuid.NewString(), user: pickUser(), body: body}
		}
		last = req

		code, id, err := createWithdrawal(client, req)
		if err != nil {
			stats.errors.Add(1)
			continue
		}

		stats.requests.Add(1)
		switch code {
		case http.StatusCreated:
			stats.created.Add(1)
			if adminToken != "" && rand.Float64() < rejectRate && reject(client, id) {
				stats.released.Add(1)
			}
		case http.StatusOK:
			stats.replayed.Add(1)
		case http.StatusConflict:
			stats.conflict.Add(1)
		case http.StatusUnprocessableEntity:
			stats.short.Add(1)
		default:
			stats.errors.Add(1)
		}
	}
}

func createWithdrawal(client *http.Client, lr *lastRequest) (int, int64, error) {
	req, _ := http.NewRequest("POST", targetURL+"/api/v1/withdrawals", bytes.NewBuffer(lr.body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", lr.key)
	req.Header.Set("X-User-ID", strconv.FormatInt(lr.user, 10))

	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	var out struct {
		ID int64 `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out.ID, nil
}

func reject(client *http.Client, id int64) bool {
	body := []byte(`{"status":"rejected","notes":"benchmark"}`)
	req, _ := http.NewRequest("POST", fmt.Sprintf("%s/api/v1/admin/withdrawals/%d/status", targetURL, id), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("X-Admin-ID", "1")

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func pickUser() int64 {
	if workload == "hotspot" {
		// Most traffic drains users 1 and 2.
		if rand.Float64() < 0.9 {
			return int64(rand.Intn(2) + 1)
		}
	}
	return int64(rand.Intn(totalUsers) + 1)
}

type results struct {
	Workload            string  `json:"workload"`
	DurationSec         float64 `json:"duration_sec"`
	TotalRequests       uint64  `json:"total_requests"`
	ThroughputTPS       float64 `json:"throughput_tps"`
	Created             uint64  `json:"success_created"`
	Replayed            uint64  `json:"success_replay"`
	Conflicts           uint64  `json:"aborts_conflict"`
	ConflictRatePct     float64 `json:"abort_rate_pct"`
	InsufficientBalance uint64  `json:"insufficient_balance"`
	Released            uint64  `json:"released"`
	Errors              uint64  `json:"errors"`
}

func summarize(elapsed time.Duration) results {
	r := results{
		Workload:            workload,
		DurationSec:         elapsed.Seconds(),
		TotalRequests:       stats.requests.Load(),
		Created:             stats.created.Load(),
		Replayed:            stats.replayed.Load(),
		Conflicts:           stats.conflict.Load(),
		InsufficientBalance: stats.short.Load(),
		Released:            stats.released.Load(),
		Errors:              stats.errors.Load(),
	}
	r.ThroughputTPS = float64(r.TotalRequests) / r.DurationSec
	if r.TotalRequests > 0 {
		r.ConflictRatePct = float64(r.Conflicts) / float64(r.TotalRequests) * 100
	}
	return r
}

func report(r results) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		logrus.WithError(err).Fatal("encode results")
	}
	fmt.Println(string(out))

	name := fmt.Sprintf("results_%s.json", r.Workload)
	if err := os.WriteFile(name, out, 0o644); err != nil {
		logrus.WithError(err).Warn("results file not written")
		return
	}
	logrus.WithField("file", name).Info("results written")
}
