package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/ojwoodford/imstream/internal/domain/entity"
	"github.com/ojwoodford/imstream/internal/infra/archive"
	"github.com/ojwoodford/imstream/internal/infra/email"
	miniostorage "github.com/ojwoodford/imstream/internal/infra/minio"
	"github.com/ojwoodford/imstream/internal/infra/postgres"
	"github.com/ojwoodford/imstream/internal/infra/rabbitmq"
	"github.com/ojwoodford/imstream/internal/infra/stream"
	"github.com/ojwoodford/imstream/internal/usecase"
	"github.com/ojwoodford/imstream/pkg/logger"
)

type testEnv struct {
	pgConnStr     string
	rmqURL        string
	minioEndpoint string
	pool          *pgxpool.Pool
	rmqConn       *amqp.Connection
	storage       *miniostorage.Storage
	minioClient   *miniogo.Client
}

// startEnv brings up Postgres, RabbitMQ and MinIO containers and runs the
// migrations.
func startEnv(t *testing.T, ctx context.Context) *testEnv {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(ctx) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { minioContainer.Terminate(ctx) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      minioEndpoint,
		AccessKey:     "minioadmin",
		SecretKey:     "minioadmin",
		UseSSL:        false,
		MediaBucket:   "media",
		ArchiveBucket: "frames",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { rmqConn.Close() })

	return &testEnv{
		pgConnStr:     pgConnStr,
		rmqURL:        rmqURL,
		minioEndpoint: minioEndpoint,
		pool:          pool,
		rmqConn:       rmqConn,
		storage:       storage,
		minioClient:   minioClient,
	}
}

// startWorker wires the full use case behind a consumer, mirroring
// cmd/worker.
func startWorker(t *testing.T, ctx context.Context, env *testEnv) {
	t.Helper()

	log, _ := logger.New("debug")
	repo := postgres.NewJobRepository(env.pool)
	reader := stream.NewReader(4, log)
	archiver := archive.NewZipArchiver()
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)

	pub, err := rabbitmq.NewPublisher(env.rmqConn, "imstream.frames")
	require.NoError(t, err)
	statusPub := rabbitmq.NewStatusPublisher(pub, "frames.status")
	dlqPub := rabbitmq.NewDLQPublisher(pub, "frames.extract.dlq")

	uc := usecase.NewExtractFramesUseCase(
		repo, env.storage, reader, archiver,
		statusPub, dlqPub, notifier,
		log,
		usecase.ExtractFramesConfig{
			TempDir:    t.TempDir(),
			MaxRetries: 3,
		},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         env.rmqURL,
		Queue:       "frames.extract",
		Exchange:    "imstream.frames",
		DLQ:         "frames.extract.dlq",
		StatusQueue: "frames.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Close() })

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	t.Cleanup(consumerCancel)

	go func() {
		consumer.Start(consumerCtx)
	}()

	// Give the consumer time to start.
	time.Sleep(500 * time.Millisecond)
}

func encodeTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractFramesEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	env := startEnv(t, ctx)
	startWorker(t, ctx, env)

	// A single PNG is the degenerate image sequence: one frame.
	mediaKey := "testuser/still_0001.png"
	pngData := encodeTestPNG(t)
	_, err := env.minioClient.PutObject(ctx, "media", mediaKey,
		bytes.NewReader(pngData), int64(len(pngData)),
		miniogo.PutObjectOptions{ContentType: "image/png"})
	require.NoError(t, err)

	jobID := uuid.New()
	msg := entity.FrameExtractionMessage{
		JobID:     jobID,
		UserID:    "testuser",
		MediaKey:  mediaKey,
		FileSize:  int64(len(pngData)),
		UserEmail: "test@test.local",
	}
	msgBody, err := json.Marshal(msg)
	require.NoError(t, err)

	pubCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"imstream.frames",
		"frames.extract",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msgBody,
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait for the status message.
	statusCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()

	statusMsgs, err := statusCh.Consume("frames.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var statusMsg entity.ExtractionStatusMessage
	select {
	case delivery := <-statusMsgs:
		require.NoError(t, json.Unmarshal(delivery.Body, &statusMsg))
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}

	assert.Equal(t, jobID, statusMsg.JobID)
	assert.Equal(t, entity.JobStatusCompleted, statusMsg.Status)
	assert.Equal(t, 1, statusMsg.FrameCount)
	assert.Equal(t, 30.0, statusMsg.FrameRate, "image sequences report the synthetic rate")
	assert.NotEmpty(t, statusMsg.ArchiveKey)

	// Verify the archive contents.
	archiveObj, err := env.minioClient.GetObject(ctx, "frames", statusMsg.ArchiveKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)

	tmpZip := filepath.Join(t.TempDir(), "result.zip")
	tmpFile, err := os.Create(tmpZip)
	require.NoError(t, err)
	_, err = tmpFile.ReadFrom(archiveObj)
	require.NoError(t, err)
	tmpFile.Close()

	zipReader, err := zip.OpenReader(tmpZip)
	require.NoError(t, err)
	defer zipReader.Close()

	pngCount := 0
	for _, f := range zipReader.File {
		if strings.HasSuffix(f.Name, ".png") {
			pngCount++
		}
	}
	assert.Equal(t, statusMsg.FrameCount, pngCount, "archive holds one PNG per frame")

	// Verify the job record.
	var dbStatus string
	var dbFrameCount int
	err = env.pool.QueryRow(ctx,
		"SELECT status, frame_count FROM extraction_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbFrameCount)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, pngCount, dbFrameCount)
}

func TestExtractFramesMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	env := startEnv(t, ctx)
	startWorker(t, ctx, env)

	pubCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"imstream.frames",
		"frames.extract",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        []byte(`{invalid json`),
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait and verify the message landed in the DLQ.
	time.Sleep(2 * time.Second)

	dlqCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	dlqMsg, ok, err := dlqCh.Get("frames.extract.dlq", true)
	require.NoError(t, err)
	assert.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(dlqMsg.Body))
}
