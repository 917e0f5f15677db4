package storage

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"vinylops/wrap-report/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigned PUT URLs are the negotiated write endpoints; they only need to
// live long enough for the immediate upload that follows.
const presignExpiry = 15 * time.Minute

// s3Storage implements ObjectStorage using an S3-compatible backend.
// Folders become zero-byte "path/" marker objects; negotiation hands out a
// presigned PUT URL for the exact key.
type s3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	httpClient    *http.Client
	bucketName    string
}

// NewS3Storage creates a new S3 storage backend.
func NewS3Storage(cfg config.S3Config) (ObjectStorage, error) {
	// Custom resolver for S3-compatible endpoints (like MinIO, DigitalOcean Spaces)
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(context.TODO(),
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsCfg.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		log.Printf("ERROR: Failed to load AWS SDK config for S3: %v", err)
		return nil, err
	}

	// Force path-style addressing required by most S3-compatible services.
	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	presignClient := s3.NewPresignClient(s3Client)

	log.Printf("S3 storage initialized for endpoint: %s, bucket: %s", cfg.Endpoint, cfg.BucketName)

	return &s3Storage{
		client:        s3Client,
		presignClient: presignClient,
		httpClient:    &http.Client{Timeout: DefaultCallTimeout},
		bucketName:    cfg.BucketName,
	}, nil
}

// EnsureFolder writes a zero-byte marker object for the folder key.
// Re-writing an existing marker is harmless, which gives the idempotency
// the provisioning contract requires.
func (s *s3Storage) EnsureFolder(ctx context.Context, path string) error {
	key := strings.TrimSuffix(path, "/") + "/"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		log.Printf("ERROR: Failed to create folder marker '%s': %v", key, err)
		return &ProvisioningError{Path: path, StatusCode: http.StatusBadGateway, Body: err.Error()}
	}
	return nil
}

// NegotiateUpload creates a presigned PUT URL for the exact object key.
// A later PUT to the same key overwrites, matching the overwrite-permitted
// negotiation contract.
func (s *s3Storage) NegotiateUpload(ctx context.Context, path string) (string, error) {
	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		log.Printf("ERROR: Failed to generate presigned PUT URL for key '%s': %v", path, err)
		return "", &NegotiationError{Path: path, StatusCode: http.StatusBadGateway, Body: err.Error()}
	}
	return req.URL, nil
}

// Upload PUTs the payload to the presigned endpoint.
func (s *s3Storage) Upload(ctx context.Context, endpoint string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &TransmissionError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// List enumerates one level under the folder key. S3 has no native offset,
// so the page is sliced client-side after a keys-sorted fetch.
func (s *s3Storage) List(ctx context.Context, path string, limit, offset int) (*Listing, error) {
	prefix := strings.TrimSuffix(path, "/") + "/"

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucketName),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, &NegotiationError{Path: path, StatusCode: http.StatusBadGateway, Body: err.Error()}
	}

	items := make([]ListItem, 0, len(out.CommonPrefixes)+len(out.Contents))
	for _, p := range out.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/")
		items = append(items, ListItem{
			Name: name,
			Path: strings.TrimSuffix(aws.ToString(p.Prefix), "/"),
			Type: "dir",
		})
	}
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if key == prefix { // the folder marker itself
			continue
		}
		item := ListItem{
			Name: strings.TrimPrefix(key, prefix),
			Path: key,
			Type: "file",
			Size: aws.ToInt64(obj.Size),
		}
		if obj.LastModified != nil {
			item.Modified = obj.LastModified.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })

	total := len(items)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return &Listing{
		Path:   strings.TrimSuffix(path, "/"),
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Items:  items,
	}, nil
}
