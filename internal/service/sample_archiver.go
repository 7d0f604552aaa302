package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/internal/voice"
	"github.com/noah-isme/voice-attendance-api/pkg/jobs"
)

const jobTypeVoiceSample = "voice_sample"

type sampleStore interface {
	Write(filename string, fn func(w io.WriteSeeker) error) (string, error)
	Delete(filename string) error
}

type samplePathRepository interface {
	UpdateSamplePath(ctx context.Context, id, path string) error
}

type samplePayload struct {
	StudentID string
	Name      string
	Audio     voice.Audio
}

// SampleArchiver writes enrollment audio to storage as 16-bit WAV on a
// background queue and records the path on the student.
type SampleArchiver struct {
	store   sampleStore
	repo    samplePathRepository
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSampleArchiver builds the archiver and its worker queue.
func NewSampleArchiver(store sampleStore, repo samplePathRepository, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *SampleArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &SampleArchiver{store: store, repo: repo, metrics: metrics, logger: logger}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	a.queue = jobs.NewQueue("voice-samples", a.handle, cfg)
	return a
}

// Run processes archive jobs until ctx is cancelled.
func (a *SampleArchiver) Run(ctx context.Context) error {
	return a.queue.Run(ctx)
}

// Archive schedules the sample for writing.
func (a *SampleArchiver) Archive(ctx context.Context, student models.Student, audio voice.Audio) error {
	return a.queue.Enqueue(ctx, jobs.Job{
		Type:    jobTypeVoiceSample,
		Payload: samplePayload{StudentID: student.ID, Name: student.DisplayName, Audio: audio},
	})
}

func (a *SampleArchiver) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(samplePayload)
	if !ok {
		a.logger.Error("unexpected job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	filename := SampleFilename(payload.StudentID, payload.Name)
	path, err := a.store.Write(filename, func(w io.WriteSeeker) error {
		return voice.WriteWAV(w, payload.Audio)
	})
	if err != nil {
		a.metrics.RecordSampleArchive(false)
		return fmt.Errorf("save sample for %s: %w", payload.StudentID, err)
	}
	if err := a.repo.UpdateSamplePath(ctx, payload.StudentID, path); err != nil {
		a.metrics.RecordSampleArchive(false)
		// No row points at the file; a retry rewrites it.
		if delErr := a.store.Delete(filename); delErr != nil {
			a.logger.Warn("remove orphaned voice sample", zap.String("path", path), zap.Error(delErr))
		}
		return fmt.Errorf("record sample path for %s: %w", payload.StudentID, err)
	}
	a.metrics.RecordSampleArchive(true)
	a.logger.Debug("voice sample archived", zap.String("student_id", payload.StudentID), zap.String("path", path))
	return nil
}

var sampleNameReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "..", "_")

// SampleFilename names the archived WAV for a student as <id>_<name>.wav with
// spaces replaced by underscores.
func SampleFilename(studentID, name string) string {
	return studentID + "_" + sampleNameReplacer.Replace(name) + ".wav"
}
