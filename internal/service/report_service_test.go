package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinylops/wrap-report/internal/domain"
	"vinylops/wrap-report/internal/storage"
)

// fakeStorage records every remote call and can fail transmission for
// selected paths. Uploads run concurrently, hence the mutex.
type fakeStorage struct {
	mu         sync.Mutex
	folders    []string
	uploads    map[string][]byte
	failPaths  map[string]bool
	ensureErr  error
	negotiated int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		uploads:   make(map[string][]byte),
		failPaths: make(map[string]bool),
	}
}

func (f *fakeStorage) EnsureFolder(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.folders = append(f.folders, path)
	return nil
}

func (f *fakeStorage) NegotiateUpload(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.folders) == 0 {
		return "", fmt.Errorf("negotiate for %q before folder was provisioned", path)
	}
	f.negotiated++
	return "endpoint:" + path, nil
}

func (f *fakeStorage) Upload(ctx context.Context, endpoint string, data []byte) error {
	path := endpoint[len("endpoint:"):]
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPaths[path] {
		return &storage.TransmissionError{StatusCode: 500, Body: "boom"}
	}
	f.uploads[path] = data
	return nil
}

func (f *fakeStorage) List(ctx context.Context, path string, limit, offset int) (*storage.Listing, error) {
	return &storage.Listing{Path: path, Limit: limit, Offset: offset, Items: []storage.ListItem{}}, nil
}

func (f *fakeStorage) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.folders) + f.negotiated
}

func newTestService(fake *fakeStorage) *reportService {
	svc := NewReportService(fake, nil, 3).(*reportService)
	svc.now = func() time.Time {
		return time.Date(2024, 3, 5, 10, 0, 0, 123456789, time.UTC)
	}
	return svc
}

func makeAssets(n int) []domain.Asset {
	assets := make([]domain.Asset, 0, n)
	for i := 0; i < n; i++ {
		assets = append(assets, domain.Asset{
			FileName: fmt.Sprintf("photo-%02d.jpg", i+1),
			Data:     []byte{0xff, 0xd8, byte(i)},
		})
	}
	return assets
}

func fullSubmission(assetCount int) *domain.Submission {
	removed := true
	return &domain.Submission{
		ParkName:       "Taxi Park",
		CarNumber:      "A123BC",
		ProjectName:    "City Branding",
		Comment:        "rear door scratched",
		DriverPhone:    "+7 900 000-00-00",
		DeliveredBy:    domain.DeliveredByDriver,
		OldWrapRemoved: &removed,
		Assets:         makeAssets(assetCount),
	}
}

func TestSubmit_TooFewAssets(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	submission := fullSubmission(4)
	_, err := svc.Submit(context.Background(), submission)

	require.ErrorIs(t, err, ErrAssetCountOutOfRange)
	assert.Zero(t, fake.callCount(), "validation failure must issue zero remote calls")
}

func TestSubmit_TooManyAssets(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	_, err := svc.Submit(context.Background(), fullSubmission(13))

	require.ErrorIs(t, err, ErrAssetCountOutOfRange)
	assert.Zero(t, fake.callCount())
}

func TestSubmit_MissingIdentifiers(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	submission := fullSubmission(5)
	submission.ParkName = "   "

	_, err := svc.Submit(context.Background(), submission)

	require.ErrorIs(t, err, ErrMissingIdentifiers)
	assert.Zero(t, fake.callCount())
}

func TestSubmit_PathSeparatorRejected(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"park/../../etc", `park\sub`, "../park", ".hidden"} {
		fake := newFakeStorage()
		svc := newTestService(fake)

		submission := fullSubmission(5)
		submission.CarNumber = bad

		_, err := svc.Submit(context.Background(), submission)

		require.ErrorIs(t, err, ErrUnsafePathSegment, "carNumber %q", bad)
		assert.Zero(t, fake.callCount())
	}
}

func TestSubmit_NoStorageConfigured(t *testing.T) {
	t.Parallel()

	svc := NewReportService(nil, nil, 2)
	_, err := svc.Submit(context.Background(), fullSubmission(5))
	require.ErrorIs(t, err, ErrStorageNotConfigured)
}

func TestSubmit_HappyPath(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	outcome, err := svc.Submit(context.Background(), fullSubmission(5))
	require.NoError(t, err)

	wantFolder := "Taxi Park/A123BC/2024-03-05T10-00-00"
	assert.Equal(t, wantFolder, outcome.Folder)
	assert.Equal(t, 5, outcome.AssetCount)
	assert.Empty(t, outcome.Failures)
	assert.ElementsMatch(t,
		[]string{"comment", "projectName", "driverPhone", "deliveredBy", "oldWrapRemoved"},
		outcome.MetadataWritten)
	assert.True(t, outcome.CommentSaved())

	require.Equal(t, []string{wantFolder}, fake.folders)
	assert.Equal(t, []byte("rear door scratched"), fake.uploads[wantFolder+"/Комментарий.txt"])
	assert.Equal(t, []byte("City Branding"), fake.uploads[wantFolder+"/Проект.txt"])
	assert.Equal(t, []byte("+7 900 000-00-00"), fake.uploads[wantFolder+"/Телефон водителя.txt"])
	assert.Equal(t, []byte("Водитель"), fake.uploads[wantFolder+"/Кто пригнал.txt"])
	assert.Equal(t, []byte("Да"), fake.uploads[wantFolder+"/Демонтаж старой плёнки.txt"])
	for i := 1; i <= 5; i++ {
		assert.Contains(t, fake.uploads, fmt.Sprintf("%s/photo-%02d.jpg", wantFolder, i))
	}
}

func TestSubmit_WrapNotRemovedWritesNo(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	submission := fullSubmission(5)
	removed := false
	submission.OldWrapRemoved = &removed

	outcome, err := svc.Submit(context.Background(), submission)
	require.NoError(t, err)
	assert.Contains(t, outcome.MetadataWritten, "oldWrapRemoved")
	assert.Equal(t, []byte("Нет"), fake.uploads[outcome.Folder+"/Демонтаж старой плёнки.txt"])
}

func TestSubmit_EmptyOptionalFieldsSkipped(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	submission := &domain.Submission{
		ParkName:  "Park",
		CarNumber: "B777OP",
		Assets:    makeAssets(5),
	}

	outcome, err := svc.Submit(context.Background(), submission)
	require.NoError(t, err)
	assert.Empty(t, outcome.MetadataWritten)
	assert.False(t, outcome.CommentSaved())
	assert.Len(t, fake.uploads, 5)
}

func TestSubmit_SingleAssetFailureDoesNotAbortSiblings(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	submission := fullSubmission(6)
	failing := "Taxi Park/A123BC/2024-03-05T10-00-00/photo-03.jpg"
	fake.failPaths[failing] = true

	outcome, err := svc.Submit(context.Background(), submission)
	require.NoError(t, err, "per-item failures must not fail the submission")

	require.Len(t, outcome.Failures, 1)
	assert.Equal(t, "photo-03.jpg", outcome.Failures[0].Target)
	assert.Contains(t, outcome.Failures[0].Cause, "500")
	assert.Equal(t, 6, outcome.AssetCount)
	assert.Equal(t, 1, outcome.FailedCount())

	// The other five photos and all metadata still landed.
	for _, name := range []string{"photo-01.jpg", "photo-02.jpg", "photo-04.jpg", "photo-05.jpg", "photo-06.jpg"} {
		assert.Contains(t, fake.uploads, outcome.Folder+"/"+name)
	}
	assert.Len(t, outcome.MetadataWritten, 5)
}

func TestSubmit_MetadataFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	fake.failPaths["Taxi Park/A123BC/2024-03-05T10-00-00/Комментарий.txt"] = true

	outcome, err := svc.Submit(context.Background(), fullSubmission(5))
	require.NoError(t, err)

	require.Len(t, outcome.Failures, 1)
	assert.Equal(t, "Комментарий.txt", outcome.Failures[0].Target)
	assert.NotContains(t, outcome.MetadataWritten, "comment")
	assert.False(t, outcome.CommentSaved())
	assert.Len(t, fake.uploads, 4+5) // four metadata objects plus all photos
}

func TestSubmit_FailuresKeepOriginalOrder(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	folder := "Taxi Park/A123BC/2024-03-05T10-00-00"
	fake.failPaths[folder+"/photo-05.jpg"] = true
	fake.failPaths[folder+"/photo-02.jpg"] = true
	fake.failPaths[folder+"/Проект.txt"] = true

	outcome, err := svc.Submit(context.Background(), fullSubmission(5))
	require.NoError(t, err)

	// Metadata failures come before asset failures, assets in submit order,
	// regardless of which goroutine finished first.
	require.Len(t, outcome.Failures, 3)
	assert.Equal(t, "Проект.txt", outcome.Failures[0].Target)
	assert.Equal(t, "photo-02.jpg", outcome.Failures[1].Target)
	assert.Equal(t, "photo-05.jpg", outcome.Failures[2].Target)
}

func TestSubmit_ProvisioningFailureIsFatal(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	fake.ensureErr = &storage.ProvisioningError{Path: "p", StatusCode: 507, Body: "insufficient storage"}
	svc := newTestService(fake)

	_, err := svc.Submit(context.Background(), fullSubmission(5))

	var provErr *storage.ProvisioningError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 507, provErr.StatusCode)
	assert.Empty(t, fake.uploads, "no writes may happen when provisioning fails")
}

func TestHistory_WithoutRepository(t *testing.T) {
	t.Parallel()

	svc := NewReportService(newFakeStorage(), nil, 2)
	reports, err := svc.History(context.Background(), "A123BC", 10)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestListFolder_Defaults(t *testing.T) {
	t.Parallel()

	fake := newFakeStorage()
	svc := newTestService(fake)

	listing, err := svc.ListFolder(context.Background(), "", 0, -5)
	require.NoError(t, err)
	assert.Equal(t, "disk:/", listing.Path)
	assert.Equal(t, 50, listing.Limit)
	assert.Equal(t, 0, listing.Offset)
}
