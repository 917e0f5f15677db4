package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"vinylops/wrap-report/internal/config"
)

// ErrDiskTokenMissing indicates the disk credential was not configured.
var ErrDiskTokenMissing = errors.New("disk access token is not configured")

// diskStorage implements ObjectStorage against the cloud disk REST API:
// PUT /resources?path=P creates a folder (201 created, 409 conflict both
// acceptable), GET /resources/upload?path=P&overwrite=true returns {href},
// and a raw PUT to that href writes the bytes.
type diskStorage struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewDiskStorage creates the cloud disk storage backend. The token is the
// only credential; it is injected here rather than read from global state so
// the backend is testable with a fake server.
func NewDiskStorage(cfg config.DiskConfig) (ObjectStorage, error) {
	if cfg.Token == "" {
		return nil, ErrDiskTokenMissing
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://cloud-api.yandex.net/v1/disk"
	}

	log.Printf("Disk storage initialized for endpoint: %s", baseURL)

	return &diskStorage{
		client:  &http.Client{Timeout: DefaultCallTimeout},
		baseURL: baseURL,
		token:   cfg.Token,
	}, nil
}

// EnsureFolder creates the folder if absent. 409 means it already exists,
// which is success.
func (d *diskStorage) EnsureFolder(ctx context.Context, path string) error {
	endpoint := fmt.Sprintf("%s/resources?path=%s", d.baseURL, url.QueryEscape(path))

	resp, err := d.do(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if isSuccess(resp.StatusCode) || resp.StatusCode == http.StatusConflict {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return &ProvisioningError{Path: path, StatusCode: resp.StatusCode, Body: string(body)}
}

// NegotiateUpload asks the store for a one-time upload href for path,
// replacing prior content if the path already has some.
func (d *diskStorage) NegotiateUpload(ctx context.Context, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/resources/upload?overwrite=true&path=%s", d.baseURL, url.QueryEscape(path))

	resp, err := d.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return "", &NegotiationError{Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Href string `json:"href"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &NegotiationError{Path: path, StatusCode: resp.StatusCode, Body: err.Error()}
	}
	return payload.Href, nil
}

// Upload PUTs the full payload to a negotiated href. The href is pre-signed
// by the store, so no credential header is attached. The client timeout
// bounds the call.
func (d *diskStorage) Upload(ctx context.Context, endpoint string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return &TransmissionError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// List proxies a folder listing page from the store.
func (d *diskStorage) List(ctx context.Context, path string, limit, offset int) (*Listing, error) {
	params := url.Values{}
	params.Set("path", path)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("preview_size", "200x200")
	params.Set("preview_crop", "true")
	params.Set("fields", "name,path,type,_embedded.total,_embedded.items.name,"+
		"_embedded.items.path,_embedded.items.type,_embedded.items.media_type,"+
		"_embedded.items.preview,_embedded.items.size,_embedded.items.modified")
	endpoint := fmt.Sprintf("%s/resources?%s", d.baseURL, params.Encode())

	resp, err := d.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return nil, &NegotiationError{Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Path     string `json:"path"`
		Embedded struct {
			Total int        `json:"total"`
			Items []ListItem `json:"items"`
		} `json:"_embedded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	listing := &Listing{
		Path:   payload.Path,
		Total:  payload.Embedded.Total,
		Limit:  limit,
		Offset: offset,
		Items:  payload.Embedded.Items,
	}
	if listing.Path == "" {
		listing.Path = path
	}
	if listing.Items == nil {
		listing.Items = []ListItem{}
	}
	return listing, nil
}

// do issues an authenticated API request. The client timeout applies the
// per-call deadline, so no extra context deadline is layered on.
func (d *diskStorage) do(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+d.token)

	return d.client.Do(req)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
