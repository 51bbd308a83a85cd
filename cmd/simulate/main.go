package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-schedule/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	Practitioners int
	Locations     int
	Days          int
	WriteRatio    float64
	FinalizeRatio float64
	BookingRatio  float64
	ReadRatio     float64
}

// dayRef is one (practitioner, location, date) the simulator works on.
type dayRef struct {
	PractitionerID string
	LocationID     string
	Date           string
}

func (d dayRef) path() string {
	return fmt.Sprintf("/practitioners/%s/locations/%s/days/%s", d.PractitionerID, d.LocationID, d.Date)
}

type createdSession struct {
	Day   dayRef
	ID    uuid.UUID
	Slots []uuid.UUID
}

type DataPool struct {
	Days     []dayRef
	mu       sync.RWMutex
	sessions []createdSession
}

func (dp *DataPool) AddSession(s createdSession) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.sessions = append(dp.sessions, s)
}

func (dp *DataPool) GetRandomSession(rng *rand.Rand) (createdSession, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.sessions) == 0 {
		return createdSession{}, false
	}
	return dp.sessions[rng.Intn(len(dp.sessions))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
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
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	AddSession OperationMetrics
	Finalize   OperationMetrics
	Booking    OperationMetrics
	ReadDay    OperationMetrics
	ReadQueue  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	_ = godotenv.Load()
	logger := logging.New("simulate", getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("write", cfg.WriteRatio).
		Float64("finalize", cfg.FinalizeRatio).
		Float64("booking", cfg.BookingRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		pool:   buildDataPool(cfg),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		Practitioners: getInt("SIM_PRACTITIONERS", 50),
		Locations:     getInt("SIM_LOCATIONS", 2),
		Days:          getInt("SIM_DAYS", 5),
		WriteRatio:    getFloat("SIM_WRITE_RATIO", 0.4),
		FinalizeRatio: getFloat("SIM_FINALIZE_RATIO", 0.1),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.2),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
	}

	// Normalize ratios
	total := cfg.WriteRatio + cfg.FinalizeRatio + cfg.BookingRatio + cfg.ReadRatio
	if total > 0 {
		cfg.WriteRatio /= total
		cfg.FinalizeRatio /= total
		cfg.BookingRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Practitioners <= 0 || cfg.Locations <= 0 || cfg.Days <= 0 {
		return fmt.Errorf("SIM_PRACTITIONERS, SIM_LOCATIONS and SIM_DAYS must be > 0")
	}
	return nil
}

func buildDataPool(cfg SimConfig) *DataPool {
	dp := &DataPool{}
	today := time.Now().UTC()
	for p := 0; p < cfg.Practitioners; p++ {
		practitionerID := uuid.NewString()
		for l := 0; l < cfg.Locations; l++ {
			locationID := uuid.NewString()
			for d := 0; d < cfg.Days; d++ {
				dp.Days = append(dp.Days, dayRef{
					PractitionerID: practitionerID,
					LocationID:     locationID,
					Date:           today.AddDate(0, 0, d).Format(time.DateOnly),
				})
			}
		}
	}
	return dp
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.WriteRatio:
				s.doAddSession(ctx, rng)
			case r < s.config.WriteRatio+s.config.FinalizeRatio:
				s.doFinalize(ctx, rng)
			case r < s.config.WriteRatio+s.config.FinalizeRatio+s.config.BookingRatio:
				s.doBooking(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doRead(ctx, rng, "", &s.metrics.ReadDay)
				} else {
					s.doRead(ctx, rng, "/queue", &s.metrics.ReadQueue)
				}
			}
		}
	}
}

// call issues one request and reports its status; status 0 means transport failure.
func (s *Simulator) call(ctx context.Context, method, path string, body any, out any) (int, time.Duration) {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, 0
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, latency
}

func (s *Simulator) doAddSession(ctx context.Context, rng *rand.Rand) {
	day := s.pool.Days[rng.Intn(len(s.pool.Days))]

	// Hour-aligned ranges collide often enough to exercise overlap rejection.
	startHour := 7 + rng.Intn(10)
	length := 1 + rng.Intn(3)
	body := map[string]string{
		"start": fmt.Sprintf("%02d:00", startHour),
		"end":   fmt.Sprintf("%02d:00", startHour+length),
	}

	var created struct {
		ID    uuid.UUID `json:"id"`
		Slots []struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"slots"`
	}
	status, latency := s.call(ctx, http.MethodPost, day.path()+"/sessions", body, &created)

	if status == http.StatusCreated && created.ID != uuid.Nil {
		cs := createdSession{Day: day, ID: created.ID}
		for _, sl := range created.Slots {
			if sl.Status == "available" {
				cs.Slots = append(cs.Slots, sl.ID)
			}
		}
		s.pool.AddSession(cs)
	}

	s.metrics.AddSession.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doFinalize(ctx context.Context, rng *rand.Rand) {
	sess, ok := s.pool.GetRandomSession(rng)
	if !ok {
		return
	}

	status, latency := s.call(ctx, http.MethodPost,
		fmt.Sprintf("%s/sessions/%s/finalize", sess.Day.path(), sess.ID), nil, nil)

	s.metrics.Finalize.Record(latency, status == http.StatusOK, status == http.StatusConflict || status == http.StatusNotFound)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	sess, ok := s.pool.GetRandomSession(rng)
	if !ok || len(sess.Slots) == 0 {
		return
	}

	slotID := sess.Slots[rng.Intn(len(sess.Slots))]
	bookStatus := "booked"
	if rng.Intn(10) == 0 {
		bookStatus = "emergency"
	}
	body := map[string]string{
		"status":         bookStatus,
		"appointment_id": uuid.NewString(),
	}

	status, latency := s.call(ctx, http.MethodPut,
		fmt.Sprintf("%s/slots/%s/booking", sess.Day.path(), slotID), body, nil)

	// Sessions edited or deleted by another worker make the slot vanish.
	s.metrics.Booking.Record(latency, status == http.StatusOK, status == http.StatusConflict || status == http.StatusNotFound)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand, suffix string, om *OperationMetrics) {
	day := s.pool.Days[rng.Intn(len(s.pool.Days))]
	status, latency := s.call(ctx, http.MethodGet, day.path()+suffix, nil, nil)
	om.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Schedule days: %d\n", len(s.pool.Days))
	fmt.Println()

	printOperationReport("Add session", &s.metrics.AddSession)
	printOperationReport("Finalize + propagate", &s.metrics.Finalize)
	printOperationReport("Booking callback", &s.metrics.Booking)
	printOperationReport("Read day", &s.metrics.ReadDay)
	printOperationReport("Read queue", &s.metrics.ReadQueue)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
