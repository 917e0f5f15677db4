package storage

import (
	"context"
	"fmt"
	"time"
)

// DefaultCallTimeout bounds every individual remote call. The remote store
// specifies no deadline of its own.
const DefaultCallTimeout = 30 * time.Second

// ObjectStorage defines the interface for the remote report store.
type ObjectStorage interface {
	// EnsureFolder creates the folder at path if it does not exist yet.
	// An already-existing folder is success; provisioning is additive and
	// safe to repeat.
	EnsureFolder(ctx context.Context, path string) error

	// NegotiateUpload obtains a one-time write endpoint for the exact remote
	// path, with overwrite permitted. The endpoint is single-use and should
	// be consumed promptly.
	NegotiateUpload(ctx context.Context, path string) (string, error)

	// Upload performs a single full-body write to a negotiated endpoint.
	Upload(ctx context.Context, endpoint string, data []byte) error

	// List returns a page of entries under path.
	List(ctx context.Context, path string, limit, offset int) (*Listing, error)
}

// Listing is one page of a folder listing.
type Listing struct {
	Path   string     `json:"path"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	Items  []ListItem `json:"items"`
}

// ListItem is a single folder or file entry.
type ListItem struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Preview   string `json:"preview,omitempty"`
	Modified  string `json:"modified,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// ProvisioningError means folder creation failed for a reason other than
// already-exists. It is fatal for the submission.
type ProvisioningError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("folder create failed for %q: %d %s", e.Path, e.StatusCode, e.Body)
}

// NegotiationError means the store refused to hand out a write endpoint.
type NegotiationError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("get upload endpoint failed for %q: %d %s", e.Path, e.StatusCode, e.Body)
}

// TransmissionError means a negotiated write did not succeed. It applies to
// that one object only; sibling writes proceed independently.
type TransmissionError struct {
	StatusCode int
	Body       string
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("upload failed: %d %s", e.StatusCode, e.Body)
}
