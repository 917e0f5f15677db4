package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeliveredBy identifies who brought the vehicle in.
type DeliveredBy string

const (
	DeliveredByDriver   DeliveredBy = "driver"
	DeliveredByMechanic DeliveredBy = "mechanic"
)

// Asset is a single photo attached to a submission. Data is held in memory
// for the lifetime of the request only.
type Asset struct {
	FileName string
	Data     []byte
}

// Submission is one inbound photo report, built from validated multipart
// fields. It is immutable once constructed and discarded after orchestration.
type Submission struct {
	ParkName       string
	CarNumber      string
	ProjectName    string
	Comment        string
	DriverPhone    string
	DeliveredBy    DeliveredBy
	OldWrapRemoved *bool // nil when the field was not submitted
	Assets         []Asset
}

// UploadFailure records one remote write that did not succeed.
type UploadFailure struct {
	Target string `json:"target"` // metadata file name or asset file name
	Cause  string `json:"cause"`
}

// UploadOutcome summarizes what a submission run actually persisted.
// AssetCount is the number of assets submitted, not the number that
// succeeded; the failures list carries the difference.
type UploadOutcome struct {
	Folder          string          `json:"folder"`
	AssetCount      int             `json:"count"`
	MetadataWritten []string        `json:"metadataWritten"`
	Failures        []UploadFailure `json:"failures"`
}

// FailedCount returns how many writes (metadata and assets) failed.
func (o *UploadOutcome) FailedCount() int {
	return len(o.Failures)
}

// CommentSaved reports whether the comment metadata object was persisted.
func (o *UploadOutcome) CommentSaved() bool {
	for _, name := range o.MetadataWritten {
		if name == "comment" {
			return true
		}
	}
	return false
}

// Report stores the history record of a processed submission. The photos
// themselves live in the remote store; this is bookkeeping only.
type Report struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID        string             `bson:"reportId" json:"reportId"` // external UUID
	ParkName        string             `bson:"parkName" json:"parkName"`
	CarNumber       string             `bson:"carNumber" json:"carNumber"`
	Folder          string             `bson:"folder" json:"folder"`
	AssetCount      int                `bson:"assetCount" json:"assetCount"`
	FailedCount     int                `bson:"failedCount" json:"failedCount"`
	MetadataWritten []string           `bson:"metadataWritten" json:"metadataWritten"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
