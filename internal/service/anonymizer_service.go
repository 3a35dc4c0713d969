package service

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/datamart-io/marketplace-api/pkg/config"
	"github.com/datamart-io/marketplace-api/pkg/jobs"
)

// AnonymizationOutcome is the completion event delivered to the lifecycle
// manager: either a success with the output artifact and its row count, or a
// terminal failure.
type AnonymizationOutcome struct {
	Success    bool
	OutputPath string
	RowCount   int
	Cause      string
}

// CompletionHandler receives terminal anonymization outcomes. Handlers must
// be idempotent: out-of-process completion can in principle be duplicated.
type CompletionHandler func(ctx context.Context, datasetID string, outcome AnonymizationOutcome)

type anonymizerRowCounter interface {
	CountRows(path string) (int, error)
}

type anonymizerStorage interface {
	Path(filename string) string
}

type anonymizationObserver interface {
	ObserveAnonymization(success bool, duration time.Duration)
}

// AnonymizerService invokes the external anonymization transform on uploaded
// files. The transform is opaque: one input path, one output path, process
// exit status 0 means success. Submission never blocks the request path; a
// failed transform is terminal and is never retried automatically.
type AnonymizerService struct {
	cfg     config.AnonymizerConfig
	tabular anonymizerRowCounter
	store   anonymizerStorage
	metrics anonymizationObserver
	logger  *zap.Logger

	queue    *jobs.Queue
	complete CompletionHandler
}

// NewAnonymizerService constructs the runner.
func NewAnonymizerService(cfg config.AnonymizerConfig, tabular anonymizerRowCounter, store anonymizerStorage, metrics anonymizationObserver, logger *zap.Logger) *AnonymizerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	s := &AnonymizerService{
		cfg:     cfg,
		tabular: tabular,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
	s.queue = jobs.NewQueue("anonymizer", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.QueueBuffer,
		Logger:     logger,
	})
	return s
}

// Start boots the worker pool and binds the completion handler.
func (s *AnonymizerService) Start(ctx context.Context, complete CompletionHandler) {
	s.complete = complete
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *AnonymizerService) Stop() {
	s.queue.Stop()
}

// Submit enqueues an anonymization run and returns immediately.
func (s *AnonymizerService) Submit(datasetID, rawFilePath string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      datasetID,
		Type:    "anonymize",
		Payload: rawFilePath,
	})
}

// OutputName returns the deterministic artifact name for a dataset, keyed by
// identity so filesystem-level retries are idempotent.
func (s *AnonymizerService) OutputName(datasetID string) string {
	return fmt.Sprintf("anonymized_%s.csv", datasetID)
}

func (s *AnonymizerService) process(ctx context.Context, job jobs.Job) error {
	datasetID := job.ID
	rawPath, ok := job.Payload.(string)
	if !ok || rawPath == "" {
		s.deliver(ctx, datasetID, AnonymizationOutcome{Cause: "missing raw file path"})
		return nil
	}

	outputName := s.OutputName(datasetID)
	outputPath := s.store.Path(outputName)

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	args := make([]string, 0, len(s.cfg.ExtraArgs)+2)
	args = append(args, s.cfg.ExtraArgs...)
	args = append(args, rawPath, outputPath)

	cmd := exec.CommandContext(runCtx, s.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		s.logger.Warn("anonymization transform failed",
			zap.String("dataset_id", datasetID),
			zap.Duration("duration", duration),
			zap.String("stderr", stderr.String()),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.ObserveAnonymization(false, duration)
		}
		s.deliver(ctx, datasetID, AnonymizationOutcome{Cause: fmt.Sprintf("transform exited abnormally: %v", err)})
		return nil
	}

	rowCount, err := s.tabular.CountRows(outputPath)
	if err != nil {
		s.logger.Warn("anonymized artifact unreadable",
			zap.String("dataset_id", datasetID),
			zap.String("output", outputPath),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.ObserveAnonymization(false, duration)
		}
		s.deliver(ctx, datasetID, AnonymizationOutcome{Cause: fmt.Sprintf("output artifact unreadable: %v", err)})
		return nil
	}

	if s.metrics != nil {
		s.metrics.ObserveAnonymization(true, duration)
	}
	s.logger.Info("anonymization completed",
		zap.String("dataset_id", datasetID),
		zap.Int("rows", rowCount),
		zap.Duration("duration", duration),
	)
	s.deliver(ctx, datasetID, AnonymizationOutcome{
		Success:    true,
		OutputPath: outputName,
		RowCount:   rowCount,
	})
	return nil
}

func (s *AnonymizerService) deliver(ctx context.Context, datasetID string, outcome AnonymizationOutcome) {
	if s.complete == nil {
		s.logger.Error("no completion handler bound, dropping outcome", zap.String("dataset_id", datasetID))
		return
	}
	s.complete(ctx, datasetID, outcome)
}
