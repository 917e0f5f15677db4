package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"vinylops/wrap-report/internal/domain"
	"vinylops/wrap-report/internal/service"
	"vinylops/wrap-report/internal/storage"
)

// ReportHandler handles photo report submission and browsing.
type ReportHandler struct {
	reportService service.ReportService
	maxFileSize   int64
}

func NewReportHandler(reportService service.ReportService, maxFileSize int64) *ReportHandler {
	if maxFileSize <= 0 {
		maxFileSize = 20 << 20
	}
	return &ReportHandler{
		reportService: reportService,
		maxFileSize:   maxFileSize,
	}
}

// Submit accepts the multipart photo report and uploads it to the remote
// store. Per-photo failures do not fail the request; they come back in the
// failures list.
// POST /api/report
func (h *ReportHandler) Submit(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	submission := &domain.Submission{
		ParkName:    formValue(form, "parkName"),
		CarNumber:   formValue(form, "carNumber"),
		ProjectName: formValue(form, "projectName"),
		Comment:     formValue(form, "comment"),
		DriverPhone: formValue(form, "driverPhone"),
	}

	deliveredBy, err := parseDeliveredBy(formValue(form, "deliveredBy"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	submission.DeliveredBy = deliveredBy

	if raw := formValue(form, "oldWrapRemoved"); raw != "" {
		removed := strings.EqualFold(raw, "true")
		submission.OldWrapRemoved = &removed
	}

	files := form.File["photos"]
	if len(files) > service.MaxAssets {
		abortWithError(c, http.StatusBadRequest, service.ErrAssetCountOutOfRange.Error())
		return
	}
	for _, fileHeader := range files {
		if fileHeader.Size > h.maxFileSize {
			abortWithError(c, http.StatusBadRequest,
				fmt.Sprintf("Photo '%s' exceeds the %d byte limit", fileHeader.Filename, h.maxFileSize))
			return
		}
		data, err := readUpload(fileHeader)
		if err != nil {
			abortWithError(c, http.StatusBadRequest,
				fmt.Sprintf("Failed to read photo '%s'", fileHeader.Filename))
			return
		}
		submission.Assets = append(submission.Assets, domain.Asset{
			FileName: fileHeader.Filename,
			Data:     data,
		})
	}

	outcome, err := h.reportService.Submit(c.Request.Context(), submission)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingIdentifiers),
			errors.Is(err, service.ErrAssetCountOutOfRange),
			errors.Is(err, service.ErrUnsafePathSegment):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStorageNotConfigured):
			abortWithError(c, http.StatusInternalServerError, err.Error())
		default:
			// Provisioning failed; nothing was written.
			abortWithError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"folder":       outcome.Folder,
		"count":        outcome.AssetCount,
		"failedCount":  outcome.FailedCount(),
		"commentSaved": outcome.CommentSaved(),
		"failures":     outcome.Failures,
	})
}

// List proxies one page of a remote folder listing.
// GET /api/report/list?path=&limit=&offset=
func (h *ReportHandler) List(c *gin.Context) {
	path := strings.TrimSpace(c.Query("path"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	listing, err := h.reportService.ListFolder(c.Request.Context(), path, limit, offset)
	if err != nil {
		var negotiationErr *storage.NegotiationError
		if errors.As(err, &negotiationErr) {
			abortWithError(c, negotiationErr.StatusCode, negotiationErr.Body)
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to list folder")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// History returns recent report records.
// GET /api/report/history?carNumber=&limit=
func (h *ReportHandler) History(c *gin.Context) {
	carNumber := strings.TrimSpace(c.Query("carNumber"))
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	reports, err := h.reportService.History(c.Request.Context(), carNumber, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load report history")
		return
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// formValue returns the first trimmed value for a multipart field.
func formValue(form *multipart.Form, key string) string {
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// parseDeliveredBy maps the inbound field to the role enum. Empty stays
// empty; anything else must name a known role.
func parseDeliveredBy(raw string) (domain.DeliveredBy, error) {
	switch strings.ToLower(raw) {
	case "":
		return "", nil
	case string(domain.DeliveredByDriver):
		return domain.DeliveredByDriver, nil
	case string(domain.DeliveredByMechanic):
		return domain.DeliveredByMechanic, nil
	default:
		return "", fmt.Errorf("deliveredBy must be %q or %q", domain.DeliveredByDriver, domain.DeliveredByMechanic)
	}
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
