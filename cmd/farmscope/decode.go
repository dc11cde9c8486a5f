package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"farmScope/internal/chain"
	"farmScope/internal/config"
	"farmScope/internal/farmabi"
	"farmScope/internal/model"
	"farmScope/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" && cfg.Farms == "" {
		return fmt.Errorf("rpc url or farms file is required")
	}
	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var chainClient *chain.Client
	if cfg.RPCURL != "" {
		chainClient, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
	}

	metaCache := farmabi.NewFarmMetaCache()
	if cfg.Farms != "" {
		farms, err := storage.ReadFarms(cfg.Farms)
		if err != nil {
			return err
		}
		metaCache.Seed(farms)
		logger.Info("farm metadata seeded", zap.Int("farms", len(farms)))
	}

	decoder, err := farmabi.NewDecoder(farmabi.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	decodeCtx := farmabi.DecodeContext{
		Context:       ctx,
		Chain:         chainClient,
		FarmMetaCache: metaCache,
		Logger:        logger,
	}

	outWriter, err := storage.NewWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.NewWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.Bool("rpc", chainClient != nil),
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	stats, err := decodeLines(cfg.In, decoder, decodeCtx, outWriter, errWriter)
	if err != nil {
		return err
	}
	if err := outWriter.Close(); err != nil {
		return err
	}
	if err := errWriter.Close(); err != nil {
		return fmt.Errorf("close decode errors: %w", err)
	}

	logger.Info("decode complete",
		zap.Int("total", stats.total),
		zap.Int("decoded", stats.decoded),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
	)

	return nil
}

type recordWriter interface {
	Write(value interface{}) error
}

type decodeStats struct {
	total, decoded, skipped, failed int
}

// decodeLines decodes every raw log in path. Undecodable logs go to errs; a
// failure of either sink stops the run.
func decodeLines(path string, decoder *farmabi.Decoder, decodeCtx farmabi.DecodeContext, out, errs recordWriter) (decodeStats, error) {
	var stats decodeStats
	err := storage.ScanLines(path, func(line []byte) error {
		stats.total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.failed++
			return writeDecodeError(errs, model.DecodeError{Error: err.Error()})
		}
		if len(record.Topics) == 0 {
			stats.failed++
			return writeDecodeError(errs, decodeErrorFromRecord(record, fmt.Errorf("missing topic0")))
		}

		if !decoder.CanDecode(record.Topics[0]) {
			stats.skipped++
			return nil
		}

		event, err := decoder.Decode(record, decodeCtx)
		if err != nil {
			stats.failed++
			return writeDecodeError(errs, decodeErrorFromRecord(record, err))
		}

		if err := out.Write(event); err != nil {
			return err
		}
		stats.decoded++
		return nil
	})
	return stats, err
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}

	return model.DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      topic0,
		Error:       err.Error(),
	}
}

func writeDecodeError(writer recordWriter, errRecord model.DecodeError) error {
	if writer == nil {
		return nil
	}
	if err := writer.Write(errRecord); err != nil {
		return fmt.Errorf("write decode error: %w", err)
	}
	return nil
}
