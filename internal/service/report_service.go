package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vinylops/wrap-report/internal/domain"
	"vinylops/wrap-report/internal/repository"
	"vinylops/wrap-report/internal/storage"
)

// --- Error Definitions ---
var (
	ErrMissingIdentifiers   = errors.New("parkName and carNumber are required")
	ErrAssetCountOutOfRange = errors.New("upload from 5 to 12 photos")
	ErrUnsafePathSegment    = errors.New("parkName and carNumber must not contain path separators")
	ErrStorageNotConfigured = errors.New("object storage is not configured")
)

// Submission bounds.
const (
	MinAssets = 5
	MaxAssets = 12
)

// Metadata object file names, as they appear in the report folder.
const (
	commentFileName     = "Комментарий.txt"
	projectFileName     = "Проект.txt"
	phoneFileName       = "Телефон водителя.txt"
	deliveredByFileName = "Кто пригнал.txt"
	wrapRemovedFileName = "Демонтаж старой плёнки.txt"
)

// ReportService handles photo report submissions and folder browsing.
type ReportService interface {
	Submit(ctx context.Context, submission *domain.Submission) (*domain.UploadOutcome, error)
	ListFolder(ctx context.Context, path string, limit, offset int) (*storage.Listing, error)
	History(ctx context.Context, carNumber string, limit int64) ([]domain.Report, error)
}

// reportService implements ReportService.
type reportService struct {
	storage        storage.ObjectStorage
	reportRepo     repository.ReportRepository // optional; history is best-effort
	maxConcurrency int
	now            func() time.Time
}

// NewReportService creates a new report service. reportRepo may be nil to
// disable history records.
func NewReportService(objectStorage storage.ObjectStorage, reportRepo repository.ReportRepository, maxConcurrency int) ReportService {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &reportService{
		storage:        objectStorage,
		reportRepo:     reportRepo,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// writeJob is one negotiate-then-transmit pair: a metadata text object or a
// photo. metadataKey is empty for photos.
type writeJob struct {
	target      string // name reported in failures
	path        string // full remote path
	data        []byte
	metadataKey string
}

// Submit validates the submission, provisions the destination folder, writes
// metadata objects and photos with a bounded fan-out, and aggregates the
// outcome. Validation and provisioning failures are fatal; individual write
// failures are recorded and do not stop sibling writes.
func (s *reportService) Submit(ctx context.Context, submission *domain.Submission) (*domain.UploadOutcome, error) {
	parkName := strings.TrimSpace(submission.ParkName)
	carNumber := strings.TrimSpace(submission.CarNumber)

	if s.storage == nil {
		return nil, ErrStorageNotConfigured
	}
	if parkName == "" || carNumber == "" {
		return nil, ErrMissingIdentifiers
	}
	// User-supplied segments become remote folder names; a separator would
	// escape the intended folder.
	if !safePathSegment(parkName) || !safePathSegment(carNumber) {
		return nil, ErrUnsafePathSegment
	}
	if len(submission.Assets) < MinAssets || len(submission.Assets) > MaxAssets {
		return nil, ErrAssetCountOutOfRange
	}

	timestamp := s.now().UTC().Format("2006-01-02T15-04-05")
	folder := fmt.Sprintf("%s/%s/%s", parkName, carNumber, timestamp)

	// Every write depends on the folder existing; nothing is attempted if
	// provisioning fails.
	if err := s.storage.EnsureFolder(ctx, folder); err != nil {
		return nil, err
	}

	jobs := s.buildJobs(folder, submission)

	// Bounded fan-out. Workers never return an error so one failed write
	// cannot cancel its siblings; per-job results land in order.
	results := make([]error, len(jobs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.maxConcurrency)
	for i, job := range jobs {
		group.Go(func() error {
			results[i] = s.writeObject(groupCtx, job.path, job.data)
			return nil
		})
	}
	_ = group.Wait()

	outcome := &domain.UploadOutcome{
		Folder:          folder,
		AssetCount:      len(submission.Assets),
		MetadataWritten: []string{},
		Failures:        []domain.UploadFailure{},
	}
	for i, job := range jobs {
		if results[i] != nil {
			outcome.Failures = append(outcome.Failures, domain.UploadFailure{
				Target: job.target,
				Cause:  results[i].Error(),
			})
			continue
		}
		if job.metadataKey != "" {
			outcome.MetadataWritten = append(outcome.MetadataWritten, job.metadataKey)
		}
	}

	s.recordHistory(ctx, parkName, carNumber, outcome)

	return outcome, nil
}

// buildJobs assembles the metadata writes for every non-empty optional field
// followed by the photo writes, keeping the original photo order.
func (s *reportService) buildJobs(folder string, submission *domain.Submission) []writeJob {
	jobs := make([]writeJob, 0, 5+len(submission.Assets))

	addMetadata := func(key, fileName, value string) {
		if value == "" {
			return
		}
		jobs = append(jobs, writeJob{
			target:      fileName,
			path:        folder + "/" + fileName,
			data:        []byte(value),
			metadataKey: key,
		})
	}

	addMetadata("comment", commentFileName, strings.TrimSpace(submission.Comment))
	addMetadata("projectName", projectFileName, strings.TrimSpace(submission.ProjectName))
	addMetadata("driverPhone", phoneFileName, strings.TrimSpace(submission.DriverPhone))
	addMetadata("deliveredBy", deliveredByFileName, deliveredByLabel(submission.DeliveredBy))
	if submission.OldWrapRemoved != nil {
		addMetadata("oldWrapRemoved", wrapRemovedFileName, yesNo(*submission.OldWrapRemoved))
	}

	for _, asset := range submission.Assets {
		jobs = append(jobs, writeJob{
			target: asset.FileName,
			path:   folder + "/" + asset.FileName,
			data:   asset.Data,
		})
	}
	return jobs
}

// writeObject is one negotiate-then-transmit pair.
func (s *reportService) writeObject(ctx context.Context, path string, data []byte) error {
	endpoint, err := s.storage.NegotiateUpload(ctx, path)
	if err != nil {
		return err
	}
	return s.storage.Upload(ctx, endpoint, data)
}

// recordHistory stores the bookkeeping record. Failures here never fail the
// submission; the photos are already on the remote store.
func (s *reportService) recordHistory(ctx context.Context, parkName, carNumber string, outcome *domain.UploadOutcome) {
	if s.reportRepo == nil {
		return
	}
	report := &domain.Report{
		ReportID:        uuid.New().String(),
		ParkName:        parkName,
		CarNumber:       carNumber,
		Folder:          outcome.Folder,
		AssetCount:      outcome.AssetCount,
		FailedCount:     outcome.FailedCount(),
		MetadataWritten: outcome.MetadataWritten,
	}
	if _, err := s.reportRepo.Create(ctx, report); err != nil {
		log.Printf("WARN: Failed to record report history for folder '%s': %v", outcome.Folder, err)
	}
}

// ListFolder proxies a listing page from the remote store.
func (s *reportService) ListFolder(ctx context.Context, path string, limit, offset int) (*storage.Listing, error) {
	if s.storage == nil {
		return nil, ErrStorageNotConfigured
	}
	if path == "" {
		path = "disk:/"
	}
	if limit < 1 {
		limit = 50
	} else if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.storage.List(ctx, path, limit, offset)
}

// History returns recent report records, optionally filtered by vehicle.
func (s *reportService) History(ctx context.Context, carNumber string, limit int64) ([]domain.Report, error) {
	if s.reportRepo == nil {
		return []domain.Report{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if carNumber != "" {
		return s.reportRepo.ListByCarNumber(ctx, carNumber, limit)
	}
	return s.reportRepo.ListRecent(ctx, limit)
}

// safePathSegment rejects values that could escape the destination folder.
func safePathSegment(segment string) bool {
	return !strings.ContainsAny(segment, `/\`) && !strings.HasPrefix(segment, ".")
}

// deliveredByLabel renders the role for the metadata file.
func deliveredByLabel(role domain.DeliveredBy) string {
	switch role {
	case domain.DeliveredByDriver:
		return "Водитель"
	case domain.DeliveredByMechanic:
		return "Механик"
	default:
		return ""
	}
}

// yesNo renders the wrap-removed flag as the localized token.
func yesNo(value bool) string {
	if value {
		return "Да"
	}
	return "Нет"
}
