package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/voice-attendance-api/api/swagger"
	"github.com/noah-isme/voice-attendance-api/internal/handler"
	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/internal/repository"
	"github.com/noah-isme/voice-attendance-api/internal/server"
	"github.com/noah-isme/voice-attendance-api/internal/service"
	"github.com/noah-isme/voice-attendance-api/internal/voice"
	"github.com/noah-isme/voice-attendance-api/pkg/cache"
	"github.com/noah-isme/voice-attendance-api/pkg/config"
	"github.com/noah-isme/voice-attendance-api/pkg/database"
	"github.com/noah-isme/voice-attendance-api/pkg/export"
	"github.com/noah-isme/voice-attendance-api/pkg/jobs"
	"github.com/noah-isme/voice-attendance-api/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logr, err := bootstrap()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logr)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	vector := cfg.Voice.MatchBackend == config.MatchBackendPGVector

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck
	if err := database.Migrate(ctx, db, database.MigrateOptions{Vector: vector}); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db, vector)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.TTL, logr, redisClient != nil)

	var (
		archiver *service.SampleArchiver
		archive  interface {
			Archive(ctx context.Context, student models.Student, audio voice.Audio) error
		}
	)
	if cfg.Samples.Enabled {
		store, err := storage.NewLocalStorage(cfg.Samples.StorageDir)
		if err != nil {
			return fmt.Errorf("init sample storage: %w", err)
		}
		archiver = service.NewSampleArchiver(store, studentRepo, metrics, logr, jobs.QueueConfig{
			Workers:    cfg.Samples.WorkerConcurrency,
			MaxRetries: cfg.Samples.WorkerRetries,
			RetryDelay: time.Second,
		})
		archive = archiver
	}

	classSvc := service.NewClassService(classRepo, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(studentRepo, classSvc, voice.StatsExtractor{}, archive, cacheSvc, metrics, validate, logr)
	attendanceOpts := service.AttendanceOptions{
		Backend:  cfg.Voice.MatchBackend,
		Location: cfg.Attendance.Location,
	}
	if vector {
		attendanceOpts.Nearest = studentRepo
	}
	attendanceSvc := service.NewAttendanceService(attendanceRepo, classSvc, enrollmentSvc, metrics, validate, logr, attendanceOpts)
	exportSvc := service.NewExportService(attendanceSvc, enrollmentSvc, classSvc, cfg.Attendance.Location, logr, export.NewCSVExporter(), export.NewPDFExporter())

	audio := handler.AudioOptions{ListenTimeout: cfg.Audio.ListenTimeout, MaxUploadBytes: cfg.Audio.MaxUploadBytes}
	router := server.NewRouter(cfg, logr, metrics, server.Handlers{
		Classes:    handler.NewClassHandler(classSvc),
		Students:   handler.NewStudentHandler(enrollmentSvc, exportSvc, audio),
		Attendance: handler.NewAttendanceHandler(attendanceSvc, exportSvc, audio, cfg.Attendance.Location),
		Metrics:    handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if archiver != nil {
		g.Go(func() error {
			return archiver.Run(gctx)
		})
	}
	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "match_backend", cfg.Voice.MatchBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logr.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
