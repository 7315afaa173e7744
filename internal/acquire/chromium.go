package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Fetcher retrieves a raw timetable export from a portal URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Portal selectors. The export link only appears after the search runs.
const (
	cookieButton   = `//button[contains(., 'Zezwól')]`
	semesterLabel  = "Cały semestr"
	searchButton   = `a#SzukajLogout`
	exportLink     = `a[href*='WydrukTokuCsv']`
	DefaultTimeout = 3 * time.Minute
)

// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("invalid portal url")

// Chromium drives a headless browser through the portal's search form and
// returns the CSV export it downloads.
type Chromium struct {
	Headless bool
	Timeout  time.Duration
	log      *zap.Logger
}

// NewChromium returns a Chromium fetcher.
func NewChromium(headless bool, timeout time.Duration, log *zap.Logger) *Chromium {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Chromium{Headless: headless, Timeout: timeout, log: log}
}

// Fetch opens rawURL, accepts cookies if asked, selects the whole semester,
// runs the search and waits for the export download to complete.
func (c *Chromium) Fetch(parentCtx context.Context, rawURL string) ([]byte, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "timetable-download-*")
	if err != nil {
		return nil, fmt.Errorf("acquire: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.Headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parentCtx, opts...)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, c.Timeout)
	defer timeoutCancel()

	done := make(chan string, 1)
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*browser.EventDownloadProgress); ok && e.State == browser.DownloadProgressStateCompleted {
			select {
			case done <- e.GUID:
			default:
			}
		}
	})

	c.log.Info("portal fetch start", zap.String("url", RedactURL(rawURL)))

	if err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
		chromedp.Navigate(rawURL),
	); err != nil {
		return nil, fmt.Errorf("acquire: open portal: %w", err)
	}

	c.acceptCookies(ctx)

	var semester bool
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(selectSemesterJS, &semester),
		chromedp.Click(searchButton, chromedp.ByQuery),
		chromedp.WaitVisible(exportLink, chromedp.ByQuery),
		chromedp.Click(exportLink, chromedp.ByQuery),
	); err != nil && !strings.Contains(err.Error(), "net::ERR_ABORTED") {
		return nil, fmt.Errorf("acquire: request export: %w", err)
	}

	if !semester {
		c.log.Warn("semester filter not found", zap.String("url", RedactURL(rawURL)))
	}

	var guid string
	select {
	case guid = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire: waiting for download: %w", ctx.Err())
	}

	data, err := os.ReadFile(filepath.Join(dir, guid))
	if err != nil {
		return nil, fmt.Errorf("acquire: read download: %w", err)
	}
	c.log.Info("portal fetch success", zap.String("url", RedactURL(rawURL)), zap.Int("bytes", len(data)))
	return data, nil
}

// acceptCookies clicks the consent button when it shows up within a few
// seconds; a missing dialog is fine.
func (c *Chromium) acceptCookies(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(cctx, chromedp.Click(cookieButton, chromedp.BySearch)); err != nil {
		c.log.Debug("cookie dialog not handled", zap.Error(err))
	}
}

var selectSemesterJS = `(() => {
	for (const lbl of document.querySelectorAll("label.custom-control-label")) {
		if (lbl.innerText.trim() === "` + semesterLabel + `") { lbl.click(); return true; }
	}
	return false;
})()`

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return nil
}

// RedactURL keeps only scheme and host of a URL for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
