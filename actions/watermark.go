package actions

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/relloyd/freshpipe/config"
	"github.com/relloyd/freshpipe/logger"
	"github.com/relloyd/freshpipe/rdbms/shared"
	"github.com/relloyd/freshpipe/watermark"
)

type WatermarkConfig struct {
	Pipeline *config.Pipeline
	Deps     Deps
}

// RunWatermark reads and prints the watermark without fetching or uploading anything.
func RunWatermark(ctx context.Context, log logger.Logger, cfg *WatermarkConfig) (string, error) {
	if cfg == nil || cfg.Pipeline == nil {
		return "", fmt.Errorf("nil pointer for watermark config supplied")
	}
	params, err := cfg.Deps.LoadConnectionParams(cfg.Pipeline.Warehouse.CredentialsFile)
	if err != nil {
		return "", err
	}
	return readWatermark(ctx, log, cfg.Pipeline, cfg.Deps, params)
}

// readWatermark opens a warehouse session, runs the watermark query and closes the session straight away.
func readWatermark(ctx context.Context, log logger.Logger, p *config.Pipeline, deps Deps, params map[string]string) (string, error) {
	conn := shared.ConnectionDetails{
		Type:        p.Warehouse.Type,
		LogicalName: p.Warehouse.CredentialsFile,
		Data:        params,
	}
	log.Debug("warehouse connection:\n", conn)
	log.Info(fmt.Sprintf("Creating %v session...", conn.Type))
	db, err := deps.OpenDbConnection(log, conn)
	if err != nil {
		return "", errors.Wrap(err, "error opening warehouse session")
	}
	r := watermark.NewReader(log)
	if p.Warehouse.Table != "" {
		r.Table = p.Warehouse.Table
	}
	if p.Warehouse.UpdatedColumn != "" {
		r.UpdatedColumn = p.Warehouse.UpdatedColumn
	}
	if p.Warehouse.CreatedColumn != "" {
		r.CreatedColumn = p.Warehouse.CreatedColumn
	}
	if p.Warehouse.DefaultWatermark != "" {
		r.Default = p.Warehouse.DefaultWatermark
	}
	w, err := r.Read(ctx, db)
	if cerr := db.Close(); cerr != nil {
		log.Warn("error closing warehouse session: ", cerr)
	}
	return w, err
}
