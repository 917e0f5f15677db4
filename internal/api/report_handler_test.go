package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinylops/wrap-report/internal/domain"
	"vinylops/wrap-report/internal/service"
	"vinylops/wrap-report/internal/storage"
)

// stubReportService captures the submission the handler builds and returns a
// canned outcome.
type stubReportService struct {
	lastSubmission *domain.Submission
	outcome        *domain.UploadOutcome
	submitErr      error
}

func (s *stubReportService) Submit(ctx context.Context, submission *domain.Submission) (*domain.UploadOutcome, error) {
	s.lastSubmission = submission
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.outcome, nil
}

func (s *stubReportService) ListFolder(ctx context.Context, path string, limit, offset int) (*storage.Listing, error) {
	return &storage.Listing{Path: path, Limit: limit, Offset: offset, Items: []storage.ListItem{}}, nil
}

func (s *stubReportService) History(ctx context.Context, carNumber string, limit int64) ([]domain.Report, error) {
	return []domain.Report{}, nil
}

func newReportRouter(stub *stubReportService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewReportHandler(stub, 0)
	router.POST("/api/report", handler.Submit)
	router.GET("/api/report/list", handler.List)
	return router
}

func multipartReport(t *testing.T, fields map[string]string, photoNames []string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, name := range photoNames {
		part, err := writer.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = part.Write([]byte{0xff, 0xd8, 0x01})
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func photoNames(n int) []string {
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, "photo.jpg")
	}
	return names
}

func TestSubmitHandler_Success(t *testing.T) {
	stub := &stubReportService{
		outcome: &domain.UploadOutcome{
			Folder:          "Park/A123BC/2024-03-05T10-00-00",
			AssetCount:      5,
			MetadataWritten: []string{"comment"},
			Failures:        []domain.UploadFailure{},
		},
	}
	router := newReportRouter(stub)

	body, contentType := multipartReport(t, map[string]string{
		"parkName":       "Park",
		"carNumber":      "A123BC",
		"comment":        "scratch on hood",
		"deliveredBy":    "driver",
		"oldWrapRemoved": "TRUE",
	}, photoNames(5))

	req := httptest.NewRequest(http.MethodPost, "/api/report", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		OK           bool   `json:"ok"`
		Folder       string `json:"folder"`
		Count        int    `json:"count"`
		FailedCount  int    `json:"failedCount"`
		CommentSaved bool   `json:"commentSaved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "Park/A123BC/2024-03-05T10-00-00", resp.Folder)
	assert.Equal(t, 5, resp.Count)
	assert.Zero(t, resp.FailedCount)
	assert.True(t, resp.CommentSaved)

	require.NotNil(t, stub.lastSubmission)
	assert.Equal(t, "Park", stub.lastSubmission.ParkName)
	assert.Equal(t, domain.DeliveredByDriver, stub.lastSubmission.DeliveredBy)
	require.NotNil(t, stub.lastSubmission.OldWrapRemoved)
	assert.True(t, *stub.lastSubmission.OldWrapRemoved)
	assert.Len(t, stub.lastSubmission.Assets, 5)
}

func TestSubmitHandler_ValidationErrorsMapTo400(t *testing.T) {
	stub := &stubReportService{submitErr: service.ErrAssetCountOutOfRange}
	router := newReportRouter(stub)

	body, contentType := multipartReport(t, map[string]string{
		"parkName":  "Park",
		"carNumber": "A123BC",
	}, photoNames(2))

	req := httptest.NewRequest(http.MethodPost, "/api/report", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "5 to 12")
}

func TestSubmitHandler_TooManyPhotosRejectedBeforeService(t *testing.T) {
	stub := &stubReportService{}
	router := newReportRouter(stub)

	body, contentType := multipartReport(t, map[string]string{
		"parkName":  "Park",
		"carNumber": "A123BC",
	}, photoNames(13))

	req := httptest.NewRequest(http.MethodPost, "/api/report", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, stub.lastSubmission, "oversized submissions must not reach the service")
}

func TestSubmitHandler_UnknownDeliveredBy(t *testing.T) {
	stub := &stubReportService{}
	router := newReportRouter(stub)

	body, contentType := multipartReport(t, map[string]string{
		"parkName":    "Park",
		"carNumber":   "A123BC",
		"deliveredBy": "pilot",
	}, photoNames(5))

	req := httptest.NewRequest(http.MethodPost, "/api/report", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, stub.lastSubmission)
}

func TestSubmitHandler_ProvisioningErrorMapsTo502(t *testing.T) {
	stub := &stubReportService{
		submitErr: &storage.ProvisioningError{Path: "p", StatusCode: 500, Body: "boom"},
	}
	router := newReportRouter(stub)

	body, contentType := multipartReport(t, map[string]string{
		"parkName":  "Park",
		"carNumber": "A123BC",
	}, photoNames(5))

	req := httptest.NewRequest(http.MethodPost, "/api/report", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListHandler_ParsesQuery(t *testing.T) {
	stub := &stubReportService{}
	router := newReportRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/report/list?path=disk:/Park&limit=10&offset=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var listing storage.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, "disk:/Park", listing.Path)
	assert.Equal(t, 10, listing.Limit)
	assert.Equal(t, 20, listing.Offset)
}
