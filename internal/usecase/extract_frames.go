package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ojwoodford/imstream/internal/domain/entity"
	"github.com/ojwoodford/imstream/internal/domain/port"
	"github.com/ojwoodford/imstream/internal/infra/metrics"
)

type ExtractFramesUseCase struct {
	repo      port.JobRepository
	storage   port.MediaStorage
	reader    port.FrameReader
	archiver  port.Archiver
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	maxRetry  int
}

type ExtractFramesConfig struct {
	TempDir    string
	MaxRetries int
}

func NewExtractFramesUseCase(
	repo port.JobRepository,
	storage port.MediaStorage,
	reader port.FrameReader,
	archiver port.Archiver,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ExtractFramesConfig,
) *ExtractFramesUseCase {
	return &ExtractFramesUseCase{
		repo:      repo,
		storage:   storage,
		reader:    reader,
		archiver:  archiver,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxRetry:  cfg.MaxRetries,
	}
}

func (uc *ExtractFramesUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractFramesUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.FrameExtractionMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.media_key", msg.MediaKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("media_key", msg.MediaKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewExtractionJob(msg.UserID, msg.MediaKey, msg.FileSize, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.extractionPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *ExtractFramesUseCase) extractionPipeline(
	ctx context.Context,
	job *entity.ExtractionJob,
	msg entity.FrameExtractionMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download the media object, keeping its original filename: the stream
	// layer dispatches on the extension, and an image name seeds sequence
	// detection.
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_media")
	mediaPath := filepath.Join(workDir, filepath.Base(msg.MediaKey))
	if err := uc.storage.DownloadMedia(ctx2, msg.MediaKey, mediaPath); err != nil {
		spanDl.End()
		log.Error("failed to download media", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_media: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Decode every frame through the media stream.
	exStart := time.Now()
	ctx3, spanEx := tracer.Start(ctx, "read_frames")
	framesDir := filepath.Join(workDir, "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		spanEx.End()
		return fmt.Errorf("create frames dir: %w", err)
	}
	result, err := uc.reader.ReadFrames(ctx3, mediaPath, framesDir)
	if err != nil {
		spanEx.End()
		log.Error("frame reading failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "read_frames: "+err.Error(), log)
	}
	spanEx.End()
	metrics.JobProcessingDuration.WithLabelValues("read").Observe(time.Since(exStart).Seconds())
	metrics.FramesDecodedTotal.Add(float64(result.FrameCount))

	// Bundle the frames.
	zipStart := time.Now()
	ctx4, spanZip := tracer.Start(ctx, "create_archive")
	archivePath := filepath.Join(workDir, "frames.zip")
	if err := uc.archiver.CreateArchive(ctx4, result.FramePaths, archivePath); err != nil {
		spanZip.End()
		log.Error("archive creation failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "create_archive: "+err.Error(), log)
	}
	spanZip.End()
	metrics.JobProcessingDuration.WithLabelValues("archive").Observe(time.Since(zipStart).Seconds())

	// Upload the archive.
	upStart := time.Now()
	ctx5, spanUp := tracer.Start(ctx, "upload_archive")
	archiveKey := fmt.Sprintf("%s/frames_%s.zip", msg.UserID, job.ID.String())
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "open_archive: "+err.Error(), log)
	}
	archiveStat, _ := archiveFile.Stat()
	if err := uc.storage.UploadArchive(ctx5, archiveKey, archiveFile, archiveStat.Size()); err != nil {
		archiveFile.Close()
		spanUp.End()
		log.Error("archive upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_archive: "+err.Error(), log)
	}
	archiveFile.Close()
	spanUp.End()
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.MarkCompleted(archiveKey, result.FrameCount, result.MediaDuration, result.FrameRate)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", result.FrameCount),
		zap.Float64("duration_secs", result.MediaDuration),
		zap.String("archive_key", archiveKey),
	)

	return nil
}

func (uc *ExtractFramesUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.ExtractionJob,
	msg entity.FrameExtractionMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ExtractFramesUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.ExtractionJob,
	msg entity.FrameExtractionMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.MediaKey, errMsg)
	}

	return nil
}

func (uc *ExtractFramesUseCase) publishStatus(ctx context.Context, job *entity.ExtractionJob, log *zap.Logger) {
	statusMsg := entity.ExtractionStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		MediaKey:     job.MediaKey,
		ArchiveKey:   job.ArchiveKey,
		FrameCount:   job.FrameCount,
		Duration:     job.MediaDuration,
		FrameRate:    job.FrameRate,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
