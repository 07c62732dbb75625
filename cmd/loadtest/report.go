package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// scenarioMethod: под этим именем учитывается сценарий целиком.
const scenarioMethod = "scenario"

// latencySummary в миллисекундах.
type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	Rejected  int64            `json:"rejected"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

// tally копит результаты одного метода.
type tally struct {
	methodReport
	samples []time.Duration
}

func (t *tally) add(latency time.Duration, status int) {
	t.Calls++
	switch {
	case isSuccess(status):
		t.Success++
	case isRejection(status):
		t.Rejected++
		t.Failed++
	default:
		t.Failed++
	}
	t.Statuses[statusLabel(status)]++
	t.samples = append(t.samples, latency)
}

func (t *tally) report() methodReport {
	out := t.methodReport
	out.Statuses = maps.Clone(t.Statuses)
	out.ErrorRate = ratio(t.Failed, t.Calls)
	out.LatencyMs = summarize(t.samples)
	return out
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*tally
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*tally)}
}

// record учитывает вызов; status 0 значит, что ответа не было.
func (c *collector) record(method string, latency time.Duration, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.methods[method]
	if !ok {
		t = &tally{methodReport: methodReport{Statuses: map[string]int64{}}}
		c.methods[method] = t
	}
	t.add(latency, status)
}

func (c *collector) snapshot(method string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.methods[method]
	if !ok {
		return methodReport{}, false
	}
	return t.report(), true
}

func (c *collector) buildReport(startedAt time.Time, elapsed time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: elapsed.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}
	for name, t := range c.methods {
		out.Methods[name] = t.report()
	}

	scenario := out.Methods[scenarioMethod]
	out.TotalScenarios = scenario.Calls
	out.SuccessScenarios = scenario.Success
	out.FailedScenarios = scenario.Failed
	out.ErrorRate = scenario.ErrorRate
	out.ScenarioLatencyMs = scenario.LatencyMs
	if elapsed > 0 {
		out.RPS = float64(out.TotalScenarios) / elapsed.Seconds()
	}
	return out
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// isRejection: сервис ответил отказом по бизнес-правилу (нет остатка, чужой заказ).
func isRejection(status int) bool {
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

func statusLabel(status int) string {
	if status == 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}

func ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func summarize(samples []time.Duration) latencySummary {
	if len(samples) == 0 {
		return latencySummary{}
	}
	ms := make([]float64, len(samples))
	for i, d := range samples {
		ms[i] = float64(d.Microseconds()) / 1000
	}
	return buildLatencySummary(ms)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
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

// percentile по методу nearest-rank; sorted упорядочен по возрастанию.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	return sorted[min(max(rank, 1), len(sorted))-1]
}

func writeJSONReport(path string, result report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return fmt.Errorf("output path %q is not a file", path)
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return fmt.Errorf("output path %q escapes working directory", path)
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	// #nosec G306 -- отчёт не содержит секретов.
	return os.WriteFile(clean, append(body, '\n'), 0o644)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg),
		result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	l := result.ScenarioLatencyMs
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		l.Min, l.Avg, l.P50, l.P95, l.P99, l.Max)

	names := slices.Sorted(maps.Keys(result.Methods))
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tCALLS\tOK\tREJECTED\tFAILED\tP95 MS")
	for _, name := range names {
		if name == scenarioMethod {
			continue
		}
		m := result.Methods[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.2f\n", name, m.Calls, m.Success, m.Rejected, m.Failed, m.LatencyMs.P95)
	}
	_ = tw.Flush()
}

func runTarget(cfg config) string {
	switch {
	case cfg.duration <= 0:
		return fmt.Sprintf("count:%d", cfg.total)
	case cfg.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	default:
		return fmt.Sprintf("duration:%s", cfg.duration)
	}
}
