package actions

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/relloyd/freshpipe/blob"
	"github.com/relloyd/freshpipe/config"
	"github.com/relloyd/freshpipe/constants"
	"github.com/relloyd/freshpipe/freshservice"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/table"
	"github.com/relloyd/freshpipe/watermark"
	"github.com/rs/xid"
)

// ErrPartialFetch is returned when rejectPartial is set and any resource was not fetched completely.
var ErrPartialFetch = errors.New("one or more resources were fetched incompletely")

type SyncConfig struct {
	Pipeline *config.Pipeline
	Deps     Deps
}

// SyncResult summarises one run.
type SyncResult struct {
	RunID       string
	Watermark   string
	SoftFailure bool // the run ended early without error, e.g. the warehouse table is missing.
	Resources   []ResourceResult
}

type ResourceResult struct {
	Name     string
	BlobPath string
	Rows     int
	Pages    int
	Complete bool
	Err      string `json:",omitempty" yaml:",omitempty"`
}

type fetched struct {
	resource config.Resource
	result   *freshservice.Result
}

// RunSync executes one extraction run in strict order:
// credentials, watermark, fetch every resource, then upload every resource.
// A SQL compilation error while reading the watermark ends the run with SoftFailure set and a nil error.
func RunSync(ctx context.Context, log logger.Logger, cfg *SyncConfig) (*SyncResult, error) {
	if cfg == nil || cfg.Pipeline == nil {
		return nil, fmt.Errorf("nil pointer for sync config supplied")
	}
	p := cfg.Pipeline
	if err := p.Validate(); err != nil {
		return nil, err
	}
	res := &SyncResult{RunID: xid.New().String()}
	log = log.WithField("run", res.RunID)
	log.Info("Starting Freshservice extract...")
	// Load credentials.
	params, err := cfg.Deps.LoadConnectionParams(p.Warehouse.CredentialsFile)
	if err != nil {
		return res, err
	}
	apiKey, err := cfg.Deps.LoadAPIKey(p.Freshservice.ApiKeyFile)
	if err != nil {
		return res, err
	}
	// Find the latest change already in the warehouse.
	res.Watermark, err = readWatermark(ctx, log, p, cfg.Deps, params)
	if watermark.IsSoft(err) {
		log.Error("Encountered a SQL compilation error reading the watermark, ending the run: ", err)
		res.SoftFailure = true
		return res, nil
	} else if err != nil {
		return res, err
	}
	// Fetch.
	fetcher := cfg.Deps.NewFetcher(log, freshservice.Config{
		BaseUrl:  p.Freshservice.ApiBaseUrl(),
		ApiKey:   apiKey,
		Password: p.Freshservice.Password,
		Timeout:  p.Freshservice.Timeout.Duration,
		Backoff: freshservice.Backoff{
			InitialWait: p.Freshservice.Retry.InitialWait.Duration,
			MaxWait:     p.Freshservice.Retry.MaxWait.Duration,
			Multiplier:  p.Freshservice.Retry.Multiplier,
			MaxAttempts: p.Freshservice.Retry.MaxAttempts,
		},
	})
	results := make(map[string]fetched, len(p.Resources))
	incomplete := make([]string, 0)
	for _, r := range p.Resources {
		f, err := fetchResource(ctx, log.WithField("resource", r.Name), fetcher, r, res.Watermark, p.Freshservice.PerPage)
		if err != nil {
			return res, errors.Wrapf(err, "error fetching %v", r.Name)
		}
		results[r.Name] = fetched{resource: r, result: f}
		if !f.Complete {
			incomplete = append(incomplete, r.Name)
		}
	}
	if len(incomplete) > 0 && p.RejectPartial {
		return res, errors.Wrapf(ErrPartialFetch, "%v", incomplete)
	}
	// Upload.
	putter, err := cfg.Deps.NewPutter(p.Sink)
	if err != nil {
		return res, err
	}
	u := blob.NewUploader(log, putter)
	for _, r := range p.OrderedUploads() {
		f := results[r.Name]
		meta := map[string]string{
			constants.BlobMetadataComplete:  strconv.FormatBool(f.result.Complete),
			constants.BlobMetadataRunID:     res.RunID,
			constants.BlobMetadataWatermark: res.Watermark,
		}
		if err = u.Upload(ctx, f.result.Table, r.BlobPath, meta); err != nil {
			return res, err
		}
		rr := ResourceResult{
			Name:     r.Name,
			BlobPath: r.BlobPath,
			Rows:     f.result.Table.Len(),
			Pages:    f.result.Pages,
			Complete: f.result.Complete,
		}
		if f.result.Err != nil {
			rr.Err = f.result.Err.Error()
		}
		res.Resources = append(res.Resources, rr)
	}
	if len(incomplete) > 0 {
		log.Warn("Run finished with incomplete resources: ", incomplete)
	} else {
		log.Info("Run finished successfully.")
	}
	return res, nil
}

// fetchResource fetches one resource and applies its column and row post-processing.
func fetchResource(ctx context.Context, log logger.Logger, fetcher Fetcher, r config.Resource, w string, perPage int) (*freshservice.Result, error) {
	f, err := fetcher.Fetch(ctx, resourceEndpoint(r, w, perPage), r.RecordPath)
	if err != nil {
		return nil, err
	}
	if f.Table == nil {
		f.Table = table.NewTable(log)
	}
	if r.StripPrefix != "" {
		n := f.Table.StripColumnPrefix(r.StripPrefix)
		log.Debug("renamed ", n, " columns with prefix ", r.StripPrefix)
	}
	if r.Filter != "" {
		dropped, err := f.Table.Filter(r.Filter)
		if err != nil {
			return nil, errors.Wrap(err, "error applying filter")
		}
		log.Info("Filter dropped ", dropped, " rows")
	}
	if !f.Complete {
		log.Warn("Fetch was incomplete: ", f.Err)
	}
	return f, nil
}
