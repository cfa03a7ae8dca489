package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/transport/httpapi"
)

const (
	defaultUnitPrice = "49.99"
	statusTransport  = "transport_error"
)

type loadMode string

const (
	modePlace      loadMode = "place"
	modePlaceShip  loadMode = "place-ship"
	modePlaceTrash loadMode = "place-trash"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	trashRate   int
	unitPrice   decimal.Decimal
	staffUser   string
	adminUser   string
	seed        uint64
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type callReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time             `json:"started_at"`
	DurationSeconds   float64               `json:"duration_seconds"`
	TotalScenarios    int64                 `json:"total_scenarios"`
	SuccessScenarios  int64                 `json:"success_scenarios"`
	FailedScenarios   int64                 `json:"failed_scenarios"`
	ErrorRate         float64               `json:"error_rate"`
	RPS               float64               `json:"rps"`
	ScenarioLatencyMs latencySummary        `json:"scenario_latency_ms"`
	Calls             map[string]callReport `json:"calls"`
}

type callStats struct {
	calls     int64
	success   int64
	statuses  map[string]int64
	latencies []float64
}

// collector копит результаты вызовов по имени операции.
type collector struct {
	mu    sync.Mutex
	calls map[string]*callStats
}

func newCollector() *collector {
	return &collector{calls: make(map[string]*callStats)}
}

func (c *collector) record(name string, latency time.Duration, status string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, found := c.calls[name]
	if !found {
		stats = &callStats{statuses: make(map[string]int64)}
		c.calls[name] = stats
	}
	stats.calls++
	if ok {
		stats.success++
	}
	stats.statuses[status]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (s *callStats) report() callReport {
	statuses := make(map[string]int64, len(s.statuses))
	for status, count := range s.statuses {
		statuses[status] = count
	}
	failed := s.calls - s.success
	return callReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    failed,
		ErrorRate: ratio(failed, s.calls),
		Statuses:  statuses,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Calls:           make(map[string]callReport, len(c.calls)),
	}
	for name, stats := range c.calls {
		result.Calls[name] = stats.report()
	}

	if scenario, ok := result.Calls["scenario"]; ok {
		result.TotalScenarios = scenario.Calls
		result.SuccessScenarios = scenario.Success
		result.FailedScenarios = scenario.Failed
		result.ErrorRate = scenario.ErrorRate
		result.ScenarioLatencyMs = scenario.LatencyMs
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}
	return result
}

func parseConfig(args []string) (config, error) {
	var (
		cfg       config
		modeValue string
		priceRaw  string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "order API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration caps the run when set explicitly")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-ship | place-trash")
	fs.IntVar(&cfg.trashRate, "trash-rate", 100, "percent of placed orders moved to trash in place-trash mode (0..100)")
	fs.StringVar(&priceRaw, "unit-price", defaultUnitPrice, "unit price of the generated line item")
	fs.StringVar(&cfg.staffUser, "staff-user", "loadtest", "user name sent for staff requests")
	fs.StringVar(&cfg.adminUser, "admin-user", "loadtest-admin", "user name sent for admin requests")
	fs.Uint64Var(&cfg.seed, "seed", 0, "seed for generated customers; 0 means random")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	price, err := decimal.NewFromString(strings.TrimSpace(priceRaw))
	if err != nil {
		return cfg, fmt.Errorf("parse unit-price: %w", err)
	}
	cfg.unitPrice = price
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	switch {
	case cfg.baseURL == "":
		return cfg, errors.New("url is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case !cfg.unitPrice.IsPositive():
		return cfg, errors.New("unit-price must be > 0")
	case cfg.trashRate < 0 || cfg.trashRate > 100:
		return cfg, errors.New("trash-rate must be between 0 and 100")
	case strings.TrimSpace(cfg.staffUser) == "" || strings.TrimSpace(cfg.adminUser) == "":
		return cfg, errors.New("staff-user and admin-user are required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modePlace, modePlaceShip, modePlaceTrash:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	runner := newRunner(cfg, &http.Client{Timeout: cfg.timeout})
	result := runner.run(context.Background())

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// runner гоняет сценарии против HTTP API заказов.
type runner struct {
	cfg    config
	client *http.Client
	col    *collector

	fakerMu sync.Mutex
	faker   *gofakeit.Faker
}

func newRunner(cfg config, client *http.Client) *runner {
	return &runner{
		cfg:    cfg,
		client: client,
		col:    newCollector(),
		faker:  gofakeit.New(cfg.seed),
	}
}

func (r *runner) run(ctx context.Context) report {
	startedAt := time.Now()
	jobs := make(chan int, r.cfg.concurrency*2)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				_ = r.runScenario(ctx, index)
			}
		}()
	}

	dispatchJobs(jobs, r.cfg)
	wg.Wait()

	return r.col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func (r *runner) runScenario(ctx context.Context, index int) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		r.col.record("scenario", time.Since(start), status, err == nil)
	}()

	order, err := r.placeOrder(ctx)
	if err != nil {
		return err
	}

	switch {
	case r.cfg.mode == modePlaceShip:
		return r.markShipped(ctx, order)
	case r.cfg.mode == modePlaceTrash && shouldTrash(index, r.cfg.trashRate):
		return r.softDelete(ctx, order.ID)
	}
	return nil
}

func (r *runner) newPlaceOrderRequest() httpapi.PlaceOrderRequest {
	r.fakerMu.Lock()
	defer r.fakerMu.Unlock()

	return httpapi.PlaceOrderRequest{
		Customer: httpapi.CustomerDTO{
			FirstName:  r.faker.FirstName(),
			LastName:   r.faker.LastName(),
			Email:      r.faker.Email(),
			Phone:      r.faker.Phone(),
			Address:    r.faker.Street(),
			City:       r.faker.City(),
			PostalCode: r.faker.Zip(),
			Country:    r.faker.Country(),
		},
		Items: []httpapi.PlaceOrderItemDTO{{
			ProductID:   int64(r.faker.Number(1, 500)),
			ProductName: r.faker.ProductName(),
			UnitPrice:   r.cfg.unitPrice,
			Quantity:    r.faker.Number(1, 3),
		}},
	}
}

func (r *runner) placeOrder(ctx context.Context) (httpapi.OrderResponse, error) {
	var order httpapi.OrderResponse
	err := r.call(ctx, "PlaceOrder", http.MethodPost, "/api/orders", nil, r.newPlaceOrderRequest(), http.StatusCreated, &order)
	if err != nil {
		return order, err
	}
	if order.ID <= 0 {
		return order, errors.New("place order returned empty id")
	}
	return order, nil
}

func (r *runner) markShipped(ctx context.Context, order httpapi.OrderResponse) error {
	body, err := httpapi.UpdateFormFromOrder(order, string(orders.ActionMarkShipped))
	if err != nil {
		return fmt.Errorf("build update form: %w", err)
	}
	path := "/api/admin/orders/" + strconv.FormatInt(order.ID, 10)
	return r.call(ctx, "MarkShipped", http.MethodPut, path, r.staffHeaders(), body, http.StatusOK, nil)
}

func (r *runner) softDelete(ctx context.Context, id int64) error {
	path := "/api/admin/orders/" + strconv.FormatInt(id, 10)
	return r.call(ctx, "SoftDelete", http.MethodDelete, path, r.adminHeaders(), nil, http.StatusOK, nil)
}

func (r *runner) staffHeaders() http.Header {
	h := http.Header{}
	h.Set(httpapi.HeaderUserName, r.cfg.staffUser)
	h.Set(httpapi.HeaderUserRole, "staff")
	return h
}

func (r *runner) adminHeaders() http.Header {
	h := http.Header{}
	h.Set(httpapi.HeaderUserName, r.cfg.adminUser)
	h.Set(httpapi.HeaderUserRole, "Admin")
	return h
}

// call выполняет запрос и учитывает его под именем name. Ответ с другим кодом считается ошибкой.
func (r *runner) call(ctx context.Context, name, method, path string, headers http.Header, body any, want int, out any) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", name, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.cfg.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	for key, values := range headers {
		req.Header[key] = values
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.col.record(name, time.Since(start), statusTransport, false)
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == want
	if ok && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			ok = false
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	r.col.record(name, time.Since(start), strconv.Itoa(resp.StatusCode), ok)

	if !ok {
		return fmt.Errorf("%s: unexpected status %d", name, resp.StatusCode)
	}
	return nil
}

func shouldTrash(index, rate int) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 100 {
		return true
	}
	return index%100 < rate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- путь задаётся явно флагом -output.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg),
		result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate,
	)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	names := make([]string, 0, len(result.Calls))
	for name := range result.Calls {
		if name != "scenario" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Calls[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile считает перцентиль с линейной интерполяцией по отсортированному срезу.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
