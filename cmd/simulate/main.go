// simulate hammers the booking API with concurrent patients racing for the
// same day's slots. It reports outcome counts and latency percentiles; the
// interesting number is how many creates succeed versus slot_full/conflict,
// since successes must never exceed total slot capacity for the day.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	CancelRatio float64
	TargetDate  string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type bookingPool struct {
	mu  sync.Mutex
	ids []string
}

func (bp *bookingPool) Add(id string) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.ids = append(bp.ids, id)
}

func (bp *bookingPool) TakeRandom() (string, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if len(bp.ids) == 0 {
		return "", false
	}
	idx := rand.Intn(len(bp.ids))
	id := bp.ids[idx]
	bp.ids = append(bp.ids[:idx], bp.ids[idx+1:]...)
	return id, true
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	log.Printf("target=%s date=%s workers=%d duration=%s", cfg.APIBaseURL, cfg.TargetDate, cfg.Workers, cfg.Duration)

	slots, err := fetchSlots(cfg)
	if err != nil {
		log.Fatalf("fetch slots: %v", err)
	}
	if len(slots) == 0 {
		log.Fatalf("no slots defined for %s, pick an open day", cfg.TargetDate)
	}
	log.Printf("racing over %d slots", len(slots))

	var createMetrics, cancelMetrics OperationMetrics
	created := &bookingPool{}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for seq := 0; ctx.Err() == nil; seq++ {
				if rand.Float64() < cfg.CancelRatio {
					if id, ok := created.TakeRandom(); ok {
						doCancel(ctx, client, cfg, id, &cancelMetrics)
						continue
					}
				}
				start := slots[rand.Intn(len(slots))]
				doCreate(ctx, client, cfg, worker, seq, start, created, &createMetrics)
			}
		}(w)
	}
	wg.Wait()

	report("create", &createMetrics)
	report("cancel", &cancelMetrics)
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getenv("API_BASE_URL", "http://127.0.0.1:8080"),
		Duration:    30 * time.Second,
		Workers:     20,
		CancelRatio: 0.2,
		TargetDate:  time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
	}
	if v := os.Getenv("SIM_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Duration = d
		}
	}
	if v := os.Getenv("SIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("SIM_CANCEL_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f < 1 {
			cfg.CancelRatio = f
		}
	}
	if v := os.Getenv("SIM_DATE"); v != "" {
		cfg.TargetDate = v
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fetchSlots(cfg SimConfig) ([]string, error) {
	resp, err := http.Get(fmt.Sprintf("%s/time-slots?date=%s", cfg.APIBaseURL, cfg.TargetDate))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var slots map[string]struct {
		Start string `json:"start"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&slots); err != nil {
		return nil, err
	}

	starts := make([]string, 0, len(slots))
	for start := range slots {
		starts = append(starts, start)
	}
	sort.Strings(starts)
	return starts, nil
}

func doCreate(ctx context.Context, client *http.Client, cfg SimConfig, worker, seq int, slotStart string, created *bookingPool, m *OperationMetrics) {
	payload := map[string]string{
		"patient_name":         fmt.Sprintf("Load Tester %d-%d", worker, seq),
		"student_staff_number": fmt.Sprintf("%04d%04d", worker, seq),
		"email":                fmt.Sprintf("sim-%d-%d@example.edu", worker, seq),
		"phone_number":         "0000000000",
		"visit_date":           cfg.TargetDate,
		"visit_time":           slotStart,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIBaseURL+"/api/bookings", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			m.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var envelope struct {
			Booking struct {
				ID string `json:"id"`
			} `json:"booking"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Booking.ID != "" {
			created.Add(envelope.Booking.ID)
		}
		m.Record(latency, true, false)
	case http.StatusConflict, http.StatusTooManyRequests:
		m.Record(latency, false, true)
	default:
		m.Record(latency, false, false)
	}
}

func doCancel(ctx context.Context, client *http.Client, cfg SimConfig, id string, m *OperationMetrics) {
	body, _ := json.Marshal(map[string]string{"id": id})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIBaseURL+"/api/cancel_booking", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			m.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		m.Record(latency, true, false)
	case http.StatusConflict, http.StatusNotFound:
		m.Record(latency, false, true)
	default:
		m.Record(latency, false, false)
	}
}

func report(name string, m *OperationMetrics) {
	avg, min, max, p50, p95 := m.Stats()
	log.Printf("%s: total=%d success=%d conflict=%d error=%d", name, m.Total, m.Success, m.Conflict, m.Error)
	log.Printf("%s latency: avg=%s min=%s max=%s p50=%s p95=%s", name, avg, min, max, p50, p95)
}
