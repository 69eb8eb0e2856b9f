package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clearbound/enrich-cli/internal/model"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Batch enrich companies from a CSV or XLSX file",
	Long:  "Reads companies from a file with 'name' and 'website' columns and enriches them concurrently. Individual failures do not abort the batch.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		reqs, err := readBatchFile(args[0])
		if err != nil {
			return err
		}

		return processBatch(ctx, env, reqs, batchLimit, cfg.Batch.MaxConcurrent)
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of companies to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}

// readBatchFile loads enrichment requests from a CSV or XLSX file. The
// first row is a header; name and website columns are matched by label.
func readBatchFile(path string) ([]model.EnrichmentRequest, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return parseCSV(f)
	case ".xlsx":
		return parseXLSX(path)
	default:
		return nil, eris.Errorf("batch: unsupported file type %s", path)
	}
}

func parseCSV(r io.Reader) ([]model.EnrichmentRequest, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "batch: read csv")
	}
	if len(records) == 0 {
		return nil, eris.New("batch: file is empty")
	}

	nameCol, siteCol := headerColumns(records[0])
	var reqs []model.EnrichmentRequest
	for _, rec := range records[1:] {
		if req, ok := rowRequest(rec, nameCol, siteCol); ok {
			reqs = append(reqs, req)
		}
	}
	return reqs, nil
}

func parseXLSX(path string) ([]model.EnrichmentRequest, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	if len(file.Sheets) == 0 || len(file.Sheets[0].Rows) == 0 {
		return nil, eris.New("batch: file is empty")
	}

	sheet := file.Sheets[0]
	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = cell.String()
	}
	nameCol, siteCol := headerColumns(header)

	var reqs []model.EnrichmentRequest
	for _, row := range sheet.Rows[1:] {
		rec := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			rec[i] = cell.String()
		}
		if req, ok := rowRequest(rec, nameCol, siteCol); ok {
			reqs = append(reqs, req)
		}
	}
	return reqs, nil
}

// headerColumns locates the name and website columns; -1 when absent.
func headerColumns(header []string) (nameCol, siteCol int) {
	nameCol, siteCol = -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name", "company", "company_name":
			nameCol = i
		case "website", "url", "domain":
			siteCol = i
		}
	}
	return nameCol, siteCol
}

func rowRequest(rec []string, nameCol, siteCol int) (model.EnrichmentRequest, bool) {
	var req model.EnrichmentRequest
	if nameCol >= 0 && nameCol < len(rec) {
		req.Name = strings.TrimSpace(rec[nameCol])
	}
	if siteCol >= 0 && siteCol < len(rec) {
		req.Website = strings.TrimSpace(rec[siteCol])
	}
	return req, req.Validate() == nil
}

// processBatch enriches requests concurrently under the configured limit.
// Individual failures are logged and counted, never fatal.
func processBatch(ctx context.Context, env *appEnv, reqs []model.EnrichmentRequest, limit, concurrency int) error {
	if len(reqs) == 0 {
		zap.L().Info("no valid rows found")
		return nil
	}
	if limit > 0 && len(reqs) > limit {
		reqs = reqs[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("companies", len(reqs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64
	for _, req := range reqs {
		req := req
		g.Go(func() error {
			log := zap.L().With(zap.String("company", req.Name), zap.String("website", req.Website))

			run, err := executeRun(gctx, env, req)
			if err != nil {
				failed.Add(1)
				log.Error("enrichment failed", zap.Error(err))
				return nil // don't abort the batch on individual failure
			}

			succeeded.Add(1)
			log.Info("enrichment complete",
				zap.String("run_id", run.ID),
				zap.Int("competitors", len(run.Profile.Competitors)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
