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

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/logging"
)

// The simulator drives the public booking API the way real traffic would:
// a burst of racers all claiming the same slot (exactly one must win), then
// a mixed load of availability reads, bookings and patient cancellations.
// It needs a running api-server and nothing else.

type simConfig struct {
	APIBaseURL  string
	Slug        string
	Racers      int
	Workers     int
	Duration    time.Duration
	BookRatio   float64
	CancelRatio float64
	LookAhead   int // days scanned for open slots
}

func loadSimConfig() simConfig {
	cfg := simConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Slug:        getEnv("SIM_PROVIDER_SLUG", "demo-clinic"),
		Racers:      getInt("SIM_RACERS", 25),
		Workers:     getInt("SIM_WORKERS", 10),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.4),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.1),
		LookAhead:   getInt("SIM_LOOKAHEAD_DAYS", 14),
	}
	total := cfg.BookRatio + cfg.CancelRatio
	if total > 1 {
		cfg.BookRatio /= total
		cfg.CancelRatio /= total
	}
	return cfg
}

type opMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *opMetrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}
	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *opMetrics) stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()
	if len(om.latencies) == 0 {
		return 0, 0, 0
	}
	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg = sum / time.Duration(len(sorted))
	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[min(len(sorted)*95/100, len(sorted)-1)]
	return avg, p50, p95
}

type openSlot struct {
	Date string
	Time string
}

// slotPool is the shared view of bookable slots, refreshed by availability
// reads and drained by bookings.
type slotPool struct {
	mu    sync.Mutex
	slots []openSlot
}

func (p *slotPool) replace(slots []openSlot) {
	p.mu.Lock()
	p.slots = slots
	p.mu.Unlock()
}

func (p *slotPool) pick(rng *rand.Rand) (openSlot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.slots) == 0 {
		return openSlot{}, false
	}
	return p.slots[rng.Intn(len(p.slots))], true
}

type tokenPool struct {
	mu     sync.Mutex
	tokens []string
}

func (p *tokenPool) add(token string) {
	p.mu.Lock()
	p.tokens = append(p.tokens, token)
	p.mu.Unlock()
}

func (p *tokenPool) take(rng *rand.Rand) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tokens) == 0 {
		return "", false
	}
	i := rng.Intn(len(p.tokens))
	token := p.tokens[i]
	p.tokens = append(p.tokens[:i], p.tokens[i+1:]...)
	return token, true
}

type simulator struct {
	cfg    simConfig
	client *http.Client
	logger zerolog.Logger

	open    slotPool
	tokens  tokenPool
	resolve opMetrics
	booking opMetrics
	cancel  opMetrics
}

func main() {
	cfg := loadSimConfig()
	logger := logging.New("dev", "info").With().Str("service", "simulate").Logger()

	sim := &simulator{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	logger.Info().
		Str("target", cfg.APIBaseURL).
		Str("slug", cfg.Slug).
		Int("racers", cfg.Racers).
		Int("workers", cfg.Workers).
		Dur("duration", cfg.Duration).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration+time.Minute)
	defer cancel()

	if err := sim.refreshOpenSlots(ctx); err != nil {
		logger.Fatal().Err(err).Msg("no open slots found, is the api-server up and seeded?")
	}

	if !sim.raceOneSlot(ctx) {
		os.Exit(1)
	}

	sim.runMixedLoad(ctx)
	sim.printReport()
}

// raceOneSlot fires every racer at the same slot and verifies the
// single-winner guarantee: exactly one 201, everyone else a 409.
func (s *simulator) raceOneSlot(ctx context.Context) bool {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	slot, ok := s.open.pick(rng)
	if !ok {
		s.logger.Error().Msg("no slot left to race")
		return false
	}

	s.logger.Info().
		Str("date", slot.Date).
		Str("time", slot.Time).
		Int("racers", s.cfg.Racers).
		Msg("racing one slot")

	var created, conflicted, failed int64
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			status, _ := s.postBooking(ctx, slot, fmt.Sprintf("+55119999%05d", n))
			switch status {
			case http.StatusCreated:
				atomic.AddInt64(&created, 1)
			case http.StatusConflict:
				atomic.AddInt64(&conflicted, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
		}(i)
	}
	wg.Wait()

	fmt.Printf("\nslot race %s %s: %d racers -> %d created, %d conflicts, %d errors\n",
		slot.Date, slot.Time, s.cfg.Racers, created, conflicted, failed)

	if created != 1 {
		s.logger.Error().Int64("created", created).Msg("single-winner violation")
		return false
	}
	s.logger.Info().Msg("single winner confirmed")
	return true
}

func (s *simulator) runMixedLoad(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(loadCtx, workerID)
		}(i)
	}
	wg.Wait()
}

func (s *simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	faker := gofakeit.New(uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.cfg.BookRatio:
			s.doBooking(ctx, rng, faker)
		case r < s.cfg.BookRatio+s.cfg.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doResolve(ctx, rng)
		}
	}
}

func (s *simulator) doResolve(ctx context.Context, rng *rand.Rand) {
	date := time.Now().AddDate(0, 0, 1+rng.Intn(s.cfg.LookAhead)).Format("2006-01-02")

	start := time.Now()
	resp, err := s.get(ctx, fmt.Sprintf("/public/%s/availability?date=%s", s.cfg.Slug, date))
	latency := time.Since(start)
	if err != nil {
		s.resolve.record(latency, 0)
		return
	}
	defer resp.Body.Close()
	s.resolve.record(latency, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return
	}
	var day struct {
		Date  string `json:"date"`
		Slots []struct {
			Time        string `json:"time"`
			IsAvailable bool   `json:"isAvailable"`
		} `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&day); err != nil {
		return
	}
	var open []openSlot
	for _, slot := range day.Slots {
		if slot.IsAvailable {
			open = append(open, openSlot{Date: day.Date, Time: slot.Time})
		}
	}
	if len(open) > 0 {
		s.open.replace(open)
	}
}

func (s *simulator) doBooking(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) {
	slot, ok := s.open.pick(rng)
	if !ok {
		s.doResolve(ctx, rng)
		return
	}

	start := time.Now()
	status, editLink := s.postBooking(ctx, slot, "+55"+faker.Numerify("###########"))
	s.booking.record(time.Since(start), status)

	if status == http.StatusCreated && editLink != "" {
		if i := strings.LastIndex(editLink, "/"); i >= 0 {
			s.tokens.add(editLink[i+1:])
		}
	}
}

func (s *simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	token, ok := s.tokens.take(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.post(ctx, fmt.Sprintf("/public/appointments/%s/cancel", token), map[string]string{
		"reason": "simulated cancellation",
	})
	latency := time.Since(start)
	if err != nil {
		s.cancel.record(latency, 0)
		return
	}
	defer resp.Body.Close()
	s.cancel.record(latency, resp.StatusCode)
}

func (s *simulator) postBooking(ctx context.Context, slot openSlot, whatsapp string) (status int, editLink string) {
	resp, err := s.post(ctx, fmt.Sprintf("/public/%s/bookings", s.cfg.Slug), map[string]string{
		"date":           slot.Date,
		"timeSlot":       slot.Time,
		"fullName":       gofakeit.Name(),
		"whatsappNumber": whatsapp,
	})
	if err != nil {
		return 0, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return resp.StatusCode, ""
	}
	var conf struct {
		EditLink string `json:"editLink"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&conf)
	return resp.StatusCode, conf.EditLink
}

func (s *simulator) refreshOpenSlots(ctx context.Context) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < s.cfg.LookAhead; i++ {
		s.doResolve(ctx, rng)
		if _, ok := s.open.pick(rng); ok {
			return nil
		}
	}
	return fmt.Errorf("no available slots within %d days for %q", s.cfg.LookAhead, s.cfg.Slug)
}

func (s *simulator) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return s.client.Do(req)
}

func (s *simulator) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

func (s *simulator) printReport() {
	fmt.Println("\n" + strings.Repeat("=", 72))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("Target: %s  Provider: %s  Duration: %s  Workers: %d\n\n",
		s.cfg.APIBaseURL, s.cfg.Slug, s.cfg.Duration, s.cfg.Workers)

	printOp("Availability", &s.resolve)
	printOp("Booking", &s.booking)
	printOp("Cancel", &s.cancel)
}

func printOp(name string, om *opMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errs := atomic.LoadInt64(&om.Error)
	avg, p50, p95 := om.stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d  Success: %d (%.1f%%)", total, success, pct(success, total))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)", conflict, pct(conflict, total))
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)", errs, pct(errs, total))
	}
	fmt.Println()
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}

func pct(n, total int64) float64 {
	return float64(n) / float64(total) * 100
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
