package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
)

// browserCandidates are the well-known executable names tried when no
// explicit path is configured.
var browserCandidates = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
}

// stealthJS masks the most common headless-browser fingerprints before
// any page script runs.
const stealthJS = `
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	window.chrome = window.chrome || { runtime: {} };
`

// Scraper drives a headless browser against a flight search page and
// extracts a price estimate via heuristic text scanning. It is stateless
// per call; a Session can be opened explicitly to reuse one browser
// across a batch.
type Scraper struct {
	config   common.ScraperConfig
	logger   arbor.ILogger
	strategy ExtractionStrategy
}

// NewScraper creates a scraper with the default heuristic extraction
// strategy.
func NewScraper(config common.ScraperConfig, logger arbor.ILogger) *Scraper {
	return &Scraper{
		config:   config,
		logger:   logger,
		strategy: NewHeuristicStrategy(config.MinPlausiblePrice, config.MaxPlausiblePrice),
	}
}

// NewScraperWithStrategy creates a scraper with a custom extraction
// strategy.
func NewScraperWithStrategy(config common.ScraperConfig, logger arbor.ILogger, strategy ExtractionStrategy) *Scraper {
	return &Scraper{
		config:   config,
		logger:   logger,
		strategy: strategy,
	}
}

// Session is a live browser instance reusable across quote calls.
type Session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// Close shuts down the browser.
func (s *Session) Close() {
	s.browserCancel()
	s.allocCancel()
}

// findExecutable resolves the browser binary: the configured path first,
// then CHROME_BIN, then well-known installed names. Failure reasons are
// aggregated into one diagnostic error.
func (s *Scraper) findExecutable() (string, error) {
	var failures []string

	if s.config.ExecPath != "" {
		if _, err := os.Stat(s.config.ExecPath); err == nil {
			return s.config.ExecPath, nil
		}
		failures = append(failures, fmt.Sprintf("configured path %s not found", s.config.ExecPath))
	}

	if envPath := os.Getenv("CHROME_BIN"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		failures = append(failures, fmt.Sprintf("CHROME_BIN %s not found", envPath))
	}

	for _, candidate := range browserCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
		failures = append(failures, fmt.Sprintf("%s not in PATH", candidate))
	}

	return "", fmt.Errorf("no browser executable found: %s", strings.Join(failures, "; "))
}

// OpenSession launches a browser and verifies it responds. The caller
// owns the returned session and must Close it.
func (s *Scraper) OpenSession(ctx context.Context) (interfaces.ScrapeSession, error) {
	execPath, err := s.findExecutable()
	if err != nil {
		return nil, err
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", s.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if s.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.config.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Startup test before handing the session out
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed startup test (%s): %w", execPath, err)
	}

	s.logger.Debug().Str("exec_path", execPath).Msg("Browser session opened")

	return &Session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// GetQuote opens a browser, scrapes one itinerary and closes the browser
// within the single call.
func (s *Scraper) GetQuote(ctx context.Context, req interfaces.QuoteRequest) (*interfaces.Quote, error) {
	session, err := s.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return s.QuoteInSession(ctx, session, req)
}

// QuoteInSession scrapes one itinerary in an existing session. The
// session stays open for the caller to reuse.
func (s *Scraper) QuoteInSession(ctx context.Context, session interfaces.ScrapeSession, req interfaces.QuoteRequest) (*interfaces.Quote, error) {
	sess, ok := session.(*Session)
	if !ok {
		return nil, fmt.Errorf("unexpected session type %T", session)
	}

	settle := s.config.SettleDelay
	if req.CabinClass.IsPremium() {
		// Premium cabin results render noticeably later
		settle = s.config.PremiumSettleDelay
	}

	target := searchURL(req)
	s.logger.Debug().
		Str("url", target).
		Str("route", req.Origin+"-"+req.Destination).
		Dur("settle", settle).
		Msg("Scraping flight search page")

	navCtx, cancel := context.WithTimeout(sess.browserCtx, s.config.NavigationTimeout+settle)
	defer cancel()

	var pageText string
	err := chromedp.Run(navCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthJS).Do(ctx)
			return err
		}),
		chromedp.Navigate(target),
		chromedp.Sleep(settle),
		chromedp.Evaluate(`document.body.innerText`, &pageText),
	)
	if err != nil {
		return nil, fmt.Errorf("scrape navigation failed: %w", err)
	}

	extraction, err := s.strategy.Extract(pageText, req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Float64("price", extraction.Price).
		Str("airline", extraction.Airline).
		Msg("Extracted price from page")

	return &interfaces.Quote{
		Price:    extraction.Price,
		Currency: "AUD",
		Airline:  extraction.Airline,
		Source:   models.SourceScraper,
		Raw:      extraction.Snippet,
	}, nil
}
