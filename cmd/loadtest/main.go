// Команда loadtest гоняет сценарии оформления заказа через HTTP API маркетплейса
// и печатает сводку по задержкам и кодам ответов.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type loadMode string

const (
	modeCheckout        loadMode = "checkout"
	modeCheckoutConfirm loadMode = "checkout-confirm"
	modeCheckoutCancel  loadMode = "checkout-cancel"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	price       decimal.Decimal
	stock       int
	userTag     string
	adminID     string
	outputPath  string
}

// parseConfig разбирает аргументы командной строки без имени программы.
func parseConfig(args []string) (config, error) {
	cfg := config{mode: modeCheckout, price: decimal.RequireFromString("9.99")}

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "marketplace HTTP API base URL")
	fs.IntVar(&cfg.total, "total", 400, "scenarios in count mode; caps duration mode when set explicitly")
	fs.Func("duration", "run for this long instead of a fixed count (e.g. 10m)", durationFlag("duration", &cfg.duration))
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	cfg.timeout = 5 * time.Second
	fs.Func("timeout", "per-request timeout (default 5s)", durationFlag("timeout", &cfg.timeout))
	fs.Func("mode", "checkout | checkout-confirm | checkout-cancel", func(v string) (err error) {
		cfg.mode, err = parseMode(v)
		return err
	})
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "percent of confirmed orders cancelled in checkout-confirm mode")
	fs.Func("price", "product unit price (default 9.99)", func(v string) (err error) {
		if cfg.price, err = decimal.NewFromString(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("parse price: %w", err)
		}
		return nil
	})
	fs.IntVar(&cfg.stock, "stock", 1_000_000, "initial stock of the load-test product")
	fs.StringVar(&cfg.userTag, "user-tag", "load", "user id prefix")
	fs.StringVar(&cfg.adminID, "admin-id", "load-admin", "admin user id used to confirm payments")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report path")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		cfg.totalSet = cfg.totalSet || f.Name == "total"
	})
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	return cfg, cfg.validate()
}

func durationFlag(name string, dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = d
		return nil
	}
}

func (c config) validate() error {
	switch {
	case c.baseURL == "":
		return errors.New("addr is required")
	case c.duration < 0:
		return errors.New("duration must be >= 0")
	case c.duration == 0 && c.total <= 0:
		return errors.New("total must be > 0 when duration is not set")
	case c.duration > 0 && c.totalSet && c.total <= 0:
		return errors.New("total must be > 0 when explicitly set with duration")
	case c.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case c.timeout <= 0:
		return errors.New("timeout must be > 0")
	case !c.price.IsPositive():
		return errors.New("price must be > 0")
	case c.stock <= 0:
		return errors.New("stock must be > 0")
	case c.cancelRate < 0 || c.cancelRate > 100:
		return errors.New("cancel-rate must be between 0 and 100")
	case strings.TrimSpace(c.userTag) == "":
		return errors.New("user-tag is required")
	case strings.TrimSpace(c.adminID) == "":
		return errors.New("admin-id is required")
	}
	return nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeCheckout, modeCheckoutConfirm, modeCheckoutCancel:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	result, err := execute(cfg, &http.Client{
		Transport: &http.Transport{MaxIdleConnsPerHost: cfg.concurrency},
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test setup failed: %v\n", err)
		os.Exit(1)
	}

	printReport(result, cfg)
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

// execute заводит товар продавца и прогоняет сценарии на пуле воркеров.
func execute(cfg config, httpClient *http.Client) (report, error) {
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	client := newAPIClient(cfg.baseURL, cfg.timeout, httpClient)
	col := newCollector()

	productID, err := client.createProduct(seller(cfg, runID), cfg.price, cfg.stock, col)
	if err != nil {
		return report{}, err
	}

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for range cfg.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				// ошибка уже учтена в сводке под scenarioMethod
				_ = runScenario(client, cfg, productID, id, runID, col)
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt)), nil
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := range cfg.total {
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

// runScenario: новый покупатель добавляет адрес и оформляет заказ, дальше по режиму
// администратор подтверждает оплату или покупатель отменяет заказ.
func runScenario(client *apiClient, cfg config, productID string, index int, runID string, col *collector) (err error) {
	scenarioStart := time.Now()
	status := http.StatusOK
	defer func() {
		if err != nil {
			status = statusOf(err)
		}
		col.record(scenarioMethod, time.Since(scenarioStart), status)
	}()

	buyer := actor{id: fmt.Sprintf("%s-buyer-%s-%d", cfg.userTag, runID, index), role: "buyer"}

	addressID, err := client.addAddress(buyer, col)
	if err != nil {
		return err
	}

	orderID, err := client.createOrder(buyer, addressID, productID, col)
	if err != nil {
		return err
	}

	switch cfg.mode {
	case modeCheckout:
		return nil
	case modeCheckoutCancel:
		return client.cancelOrder(buyer, orderID, col)
	}

	admin := actor{id: cfg.adminID, role: "admin"}
	if err := client.confirmPayment(admin, orderID, col); err != nil {
		return err
	}
	if shouldCancelScenario(index, cfg.cancelRate) {
		return client.cancelOrder(buyer, orderID, col)
	}
	return nil
}

func seller(cfg config, runID string) actor {
	return actor{id: fmt.Sprintf("%s-seller-%s", cfg.userTag, runID), role: "seller"}
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}
