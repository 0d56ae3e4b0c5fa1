// Package freshservice fetches paginated collections from the Freshservice v2 REST API into tables.
package freshservice

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/table"
	"golang.org/x/net/context/ctxhttp"
)

var reLinkUrl = regexp.MustCompile(`<(.*?)>`)

// Config holds what a Client needs to talk to one Freshservice account.
type Config struct {
	BaseUrl  string // e.g. https://acme.freshservice.com/api/v2
	ApiKey   string
	Password string
	Timeout  time.Duration
	Backoff  Backoff
}

// Result is the outcome of fetching every page of one endpoint.
// Complete is false when paging stopped early; Err then holds the reason and Table holds the rows
// collected before it.
type Result struct {
	Table    *table.Table
	Pages    int
	Waits    int
	Complete bool
	Err      error
}

// Client fetches collections using basic auth with the API key as the user name.
type Client struct {
	log        logger.Logger
	cfg        Config
	httpClient *http.Client
	newTimer   func() backoff.Timer // nil uses the library's real timer.
	now        func() time.Time
}

func NewClient(log logger.Logger, cfg Config) *Client {
	if cfg.Password == "" {
		cfg.Password = constants.DefaultApiPassword
	}
	return &Client{
		log:        log,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// SetTimer replaces the timer used to wait between rate limited requests.
func (c *Client) SetTimer(fn func() backoff.Timer) {
	c.newTimer = fn
}

// SetHTTPClient replaces the HTTP client used for requests.
func (c *Client) SetHTTPClient(h *http.Client) {
	c.httpClient = h
}

// Fetch requests endpoint relative to the base URL and follows Link headers until there are no more pages.
// Each record found at recordPath in each page becomes one row, with nested keys flattened and all
// columns upper-cased.
// A failed page (bad status, transport error or invalid JSON) stops paging and is reported in the
// Result, not as an error. The returned error is reserved for problems that must end the run:
// rate limit exhaustion, a response without recordPath, or cancellation of ctx.
func (c *Client) Fetch(ctx context.Context, endpoint string, recordPath string) (res *Result, err error) {
	res = &Result{Table: table.NewTable(c.log), Complete: true}
	pageUrl := c.cfg.BaseUrl + "/" + strings.TrimLeft(endpoint, "/")
	c.log.Info("Fetching data from ", pageUrl, "...")
	defer func() {
		res.Table.UpperCaseColumns()
		if err != nil {
			res.Complete = false
			res.Err = err
		}
	}()
	for pageUrl != "" {
		var p page
		if p, err = c.getPage(ctx, pageUrl, res); err != nil {
			return res, err
		}
		if p.err != nil {
			if ctx.Err() != nil { // if we were cancelled...
				return res, ctx.Err()
			}
			c.stopPaging(res, pageUrl, p.err)
			break
		}
		resp, body := p.resp, p.body
		if resp.StatusCode >= 400 {
			c.stopPaging(res, pageUrl, fmt.Errorf("unexpected HTTP status %v", resp.Status))
			break
		}
		doc, decErr := table.DecodeJson(bytes.NewReader(body))
		if decErr != nil {
			c.stopPaging(res, pageUrl, errors.Wrap(decErr, "invalid JSON in response"))
			break
		}
		var records []interface{}
		if records, err = table.RecordsAtPath(doc, recordPath); err != nil {
			return res, errors.Wrapf(err, "error reading records from %v", pageUrl)
		}
		pageTable := table.NewTable(c.log)
		if err = pageTable.AppendJsonRecords(records, constants.FlattenSeparator); err != nil {
			return res, errors.Wrapf(err, "error reading records from %v", pageUrl)
		}
		res.Table.AppendTable(pageTable)
		res.Pages++
		c.log.Debug("page ", res.Pages, " returned ", pageTable.Len(), " records")
		pageUrl = nextPageUrl(resp.Request.URL, resp.Header.Get("Link"))
	}
	c.log.Info(fmt.Sprintf("Finished fetching. Total records retrieved: %v.", res.Table.Len()))
	return res, nil
}

// page is one response, or the transport error that prevented it.
type page struct {
	resp *http.Response
	body []byte
	err  error
}

// getPage requests pageUrl, waiting and retrying while the API answers 429.
// The returned error is set only when the waits are used up or ctx is done.
func (c *Client) getPage(ctx context.Context, pageUrl string, res *Result) (p page, err error) {
	var retryAfter time.Duration
	waits := 0
	op := func() error {
		p = page{}
		p.resp, p.body, p.err = c.get(ctx, pageUrl)
		if p.err == nil && p.resp.StatusCode == http.StatusTooManyRequests {
			retryAfter = parseRetryAfter(p.resp.Header, c.now())
			return errRateLimited
		}
		return nil
	}
	notify := func(_ error, d time.Duration) {
		waits++
		res.Waits++
		c.log.Warn(fmt.Sprintf("Rate limit reached. Waiting for %v before retrying (attempt %v of %v)...", d, waits, c.cfg.Backoff.MaxAttempts))
	}
	var t backoff.Timer
	if c.newTimer != nil {
		t = c.newTimer()
	}
	err = backoff.RetryNotifyWithTimer(op, c.cfg.Backoff.policy(ctx, &retryAfter), notify, t)
	if err != nil {
		if ctx.Err() != nil {
			return p, ctx.Err()
		}
		if errors.Is(err, errRateLimited) {
			return p, errors.Wrapf(ErrRateLimitExhausted, "after %v waits fetching %v", waits, pageUrl)
		}
	}
	return p, err
}

// get performs one request and returns the response with its body fully read.
func (c *Client) get(ctx context.Context, pageUrl string) (*http.Response, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, pageUrl, nil)
	if err != nil {
		return nil, nil, err
	}
	req.SetBasicAuth(c.cfg.ApiKey, c.cfg.Password)
	req.Header.Set("Content-Type", constants.ContentTypeJson)
	resp, err := ctxhttp.Do(ctx, c.httpClient, req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error reading response body")
	}
	return resp, body, nil
}

func (c *Client) stopPaging(res *Result, pageUrl string, err error) {
	c.log.Error(fmt.Sprintf("Error fetching data from %v. Error: %v", pageUrl, err))
	res.Complete = false
	res.Err = err
}

// nextPageUrl returns the first <...> reference in the Link header, resolved against the current URL.
func nextPageUrl(current *url.URL, link string) string {
	m := reLinkUrl.FindStringSubmatch(link)
	if m == nil || m[1] == "" {
		return ""
	}
	next, err := url.Parse(m[1])
	if err != nil || current == nil {
		return m[1]
	}
	return current.ResolveReference(next).String()
}
