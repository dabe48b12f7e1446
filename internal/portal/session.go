package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jamolinav/ai-assist-attorney/internal/logger"
)

// ErrSelectionUnavailable reports that a wizard step offered no option
// matching the requested value. The case identity is wrong, so retrying
// the session cannot help.
var ErrSelectionUnavailable = errors.New("portal selection unavailable")

// noResultsMarker is the literal the portal renders when a query matches
// no case.
const noResultsMarker = "No se han encontrado resultados"

const (
	startRetries   = 3
	startRetryWait = 3 * time.Second
	dropdownWait   = 15 * time.Second
	settleWait     = 1 * time.Second
	optionPollTick = 250 * time.Millisecond
	navigateWait   = 30 * time.Second
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Wizard element ids on the portal's consulta page.
const (
	selJurisdiction = "#competencia"
	selCourt        = "#conCorte"
	selTribunal     = "#conTribunal"
	selCaseType     = "#conTipoCausa"
	inputRoll       = "#conRolCausa"
	inputYear       = "#conEraCausa"
	btnSearch       = "#btnConConsulta"
)

// consultaButtonXPath locates the button that opens the search form.
// The portal has no stable id on it.
const consultaButtonXPath = `/html/body/div[9]/div/section[1]/div/div[2]/div/div[3]/div/button`

// Query is a fully specified case lookup.
type Query struct {
	Jurisdiction string
	Court        string
	Tribunal     string
	CaseType     string
	Roll         int
	Year         int
}

// Session owns a single headless browser tab pointed at the judicial
// portal. A Session serves exactly one query workflow; after Close it
// cannot be reused. Callers that need to retry create a new Session.
type Session struct {
	portalURL   string
	headless    bool
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	ctx         context.Context
	closed      bool
}

// NewSession allocates a browser and navigates to the portal, retrying
// the initial load a few times because the portal sheds load by
// dropping connections.
func NewSession(portalURL string, headless bool) (*Session, error) {
	var lastErr error
	for attempt := 1; attempt <= startRetries; attempt++ {
		s, err := newSessionOnce(portalURL, headless)
		if err == nil {
			return s, nil
		}
		lastErr = err
		logger.Warn("portal session start failed", "attempt", attempt, "error", err)
		if attempt < startRetries {
			time.Sleep(startRetryWait)
		}
	}
	return nil, fmt.Errorf("failed to start portal session after %d attempts: %w", startRetries, lastErr)
}

func newSessionOnce(portalURL string, headless bool) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(),
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(userAgent),
	)

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		portalURL:   portalURL,
		headless:    headless,
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		ctx:         tabCtx,
	}

	navCtx, cancel := context.WithTimeout(tabCtx, navigateWait)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(portalURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load portal: %w", err)
	}

	// The search form lives behind a landing-page button.
	clickCtx, cancelClick := context.WithTimeout(tabCtx, dropdownWait)
	defer cancelClick()
	if err := chromedp.Run(clickCtx,
		chromedp.WaitVisible(consultaButtonXPath, chromedp.BySearch),
		chromedp.Click(consultaButtonXPath, chromedp.BySearch),
		chromedp.Sleep(settleWait),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open consulta form: %w", err)
	}

	return s, nil
}

// Close tears down the tab and the browser. Safe to call more than
// once, and on a nil session.
func (s *Session) Close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	s.tabCancel()
	s.allocCancel()
}

// Search walks the four-step dropdown wizard, fills the roll and year,
// and submits. It returns false when the portal reports no matching
// case and ErrSelectionUnavailable when a wizard value does not exist.
func (s *Session) Search(q Query) (bool, error) {
	steps := []struct {
		selector string
		value    string
	}{
		{selJurisdiction, q.Jurisdiction},
		{selCourt, q.Court},
		{selTribunal, q.Tribunal},
		{selCaseType, q.CaseType},
	}

	// Each selection repopulates the next dropdown, so steps go
	// strictly in order with a settle pause between them.
	for _, step := range steps {
		if err := s.selectOption(step.selector, step.value); err != nil {
			return false, err
		}
		time.Sleep(settleWait)
	}

	if err := s.submitQuery(q.Roll, q.Year); err != nil {
		return false, err
	}

	return s.resultsExist()
}

// Requery resubmits the form with a different roll, keeping the wizard
// selections already made. Used by FindNextRoll.
func (s *Session) Requery(roll, year int) (bool, error) {
	if err := s.submitQuery(roll, year); err != nil {
		return false, err
	}
	return s.resultsExist()
}

// maxRollScan bounds how many successive rolls FindNextRoll probes.
const maxRollScan = 50

// FindNextRoll probes successive roll numbers after the given one and
// returns the first that exists, scanning at most maxRollScan rolls.
func (s *Session) FindNextRoll(after, year int) (int, bool, error) {
	return findNextRoll(after, year, s.Requery)
}

func findNextRoll(after, year int, requery func(roll, year int) (bool, error)) (int, bool, error) {
	for roll := after + 1; roll <= after+maxRollScan; roll++ {
		found, err := requery(roll, year)
		if err != nil {
			return 0, false, err
		}
		if found {
			return roll, true, nil
		}
	}
	return 0, false, nil
}

// selectOption picks an option by visible text. Option lists load
// asynchronously after the previous step, so the target text is polled
// for up to dropdownWait before the step fails. A populated list that
// never contains the value means the identity is wrong, reported as
// ErrSelectionUnavailable.
func (s *Session) selectOption(selector, value string) error {
	waitCtx, cancel := context.WithTimeout(s.ctx, dropdownWait)
	defer cancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("dropdown %s never appeared: %w", selector, err)
	}

	deadline := time.Now().Add(dropdownWait)
	var lastOptions []string
	for time.Now().Before(deadline) {
		options, err := s.optionTexts(selector)
		if err != nil {
			return err
		}
		lastOptions = options
		for _, opt := range options {
			if strings.EqualFold(strings.TrimSpace(opt), strings.TrimSpace(value)) {
				return s.selectByText(selector, opt)
			}
		}
		time.Sleep(optionPollTick)
	}

	logger.Warn("option not offered", "selector", selector, "value", value, "options", len(lastOptions))
	return fmt.Errorf("%w: %q not offered by %s", ErrSelectionUnavailable, value, selector)
}

func (s *Session) optionTexts(selector string) ([]string, error) {
	js := fmt.Sprintf(
		`Array.from(document.querySelector(%q).options).map(o => o.textContent.trim())`,
		selector)

	var options []string
	evalCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(js, &options)); err != nil {
		return nil, fmt.Errorf("failed to read options of %s: %w", selector, err)
	}
	return options, nil
}

// selectByText sets the select's value to the option with the given
// text and fires a change event, which is what triggers the portal's
// cascade to the next dropdown.
func (s *Session) selectByText(selector, text string) error {
	js := fmt.Sprintf(`(function() {
		var sel = document.querySelector(%q);
		for (var i = 0; i < sel.options.length; i++) {
			if (sel.options[i].textContent.trim() === %q) {
				sel.selectedIndex = i;
				sel.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, selector, text)

	var ok bool
	evalCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("failed to select %q in %s: %w", text, selector, err)
	}
	if !ok {
		return fmt.Errorf("%w: %q disappeared from %s", ErrSelectionUnavailable, text, selector)
	}
	return nil
}

func (s *Session) submitQuery(roll, year int) error {
	submitCtx, cancel := context.WithTimeout(s.ctx, dropdownWait)
	defer cancel()

	clearJS := fmt.Sprintf(
		`document.querySelector(%q).value = ''; document.querySelector(%q).value = '';`,
		inputRoll, inputYear)

	if err := chromedp.Run(submitCtx,
		chromedp.Evaluate(clearJS, nil),
		chromedp.SendKeys(inputRoll, strconv.Itoa(roll), chromedp.ByQuery),
		chromedp.SendKeys(inputYear, strconv.Itoa(year), chromedp.ByQuery),
		chromedp.Click(btnSearch, chromedp.ByQuery),
		chromedp.Sleep(settleWait),
	); err != nil {
		return fmt.Errorf("failed to submit query: %w", err)
	}
	return nil
}

// resultsExist reads the results pane and checks for the portal's
// no-results marker. Read failures err toward "found" so a flaky DOM
// read cannot misreport an existing case as missing.
func (s *Session) resultsExist() (bool, error) {
	var body string
	readCtx, cancel := context.WithTimeout(s.ctx, dropdownWait)
	defer cancel()
	if err := chromedp.Run(readCtx,
		chromedp.Sleep(settleWait),
		chromedp.Text("body", &body, chromedp.ByQuery),
	); err != nil {
		logger.Warn("failed to read results pane, assuming results exist", "error", err)
		return true, nil
	}
	return !ContainsNoResults(body), nil
}

// OpenDetail clicks into the first result row and waits for the detail
// table to render.
func (s *Session) OpenDetail() error {
	detailCtx, cancel := context.WithTimeout(s.ctx, dropdownWait)
	defer cancel()

	if err := chromedp.Run(detailCtx,
		chromedp.WaitVisible(`table a`, chromedp.ByQuery),
		chromedp.Click(`table a`, chromedp.ByQuery),
		chromedp.Sleep(settleWait),
		chromedp.WaitVisible(`table`, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to open case detail: %w", err)
	}
	return nil
}

// DetailTableHTML returns the rendered HTML of the detail view for
// offline parsing.
func (s *Session) DetailTableHTML() (string, error) {
	var html string
	readCtx, cancel := context.WithTimeout(s.ctx, dropdownWait)
	defer cancel()
	if err := chromedp.Run(readCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("failed to capture detail table: %w", err)
	}
	return html, nil
}

// Cookies exports the browser's current cookie jar so document
// downloads can replay the authenticated session over plain HTTP.
func (s *Session) Cookies() ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	readCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	err := chromedp.Run(readCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			cookies = append(cookies, &http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}
	return cookies, nil
}

// SearchWithRetry runs the full search in a fresh session, restarting
// the browser on transient failures. ErrSelectionUnavailable aborts
// immediately since no retry can make a missing option appear. The
// returned session is live and positioned on the results; the caller
// owns closing it.
func SearchWithRetry(portalURL string, headless bool, q Query) (*Session, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= startRetries; attempt++ {
		s, err := NewSession(portalURL, headless)
		if err != nil {
			lastErr = err
			continue
		}

		found, err := s.Search(q)
		if err == nil {
			return s, found, nil
		}
		s.Close()

		if errors.Is(err, ErrSelectionUnavailable) {
			return nil, false, err
		}
		lastErr = err
		logger.Warn("portal search failed, restarting session", "attempt", attempt, "error", err)
	}
	return nil, false, fmt.Errorf("portal search failed after %d attempts: %w", startRetries, lastErr)
}
