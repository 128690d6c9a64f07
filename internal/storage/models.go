package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert would violate the source_url
// uniqueness constraint. Callers should look up the existing record.
var ErrDuplicate = errors.New("duplicate source url")

// Processing status values for an evermark. pending is the initial state;
// metadata_uploaded means the record is awaiting mint, completed means the
// mint transaction landed, and ipfs_failed is terminal.
const (
	StatusPending          = "pending"
	StatusMetadataUploaded = "metadata_uploaded"
	StatusIPFSFailed       = "ipfs_failed"
	StatusCompleted        = "completed"
)

type User struct {
	ID        string
	FID       int64
	Username  string
	CreatedAt time.Time
}

// Evermark is the persisted unit of work: one preserved piece of content.
// JSON tags match the public API field names.
type Evermark struct {
	TokenID          int64     `json:"tokenId"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	Description      string    `json:"description"`
	ContentType      string    `json:"contentType"`
	SourceURL        string    `json:"sourceUrl"`
	Tags             string    `json:"tags"` // JSON array stored as text
	MetadataJSON     string    `json:"-"`
	IPFSHash         string    `json:"ipfsHash"`
	MintTx           string    `json:"mintTxHash,omitempty"`
	ProcessingStatus string    `json:"processingStatus"`
	ProcessingError  string    `json:"processingError,omitempty"`
	UserID           string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// UserStats aggregates a user's archive activity for the /stats command.
type UserStats struct {
	TotalSaves int    `json:"totalSaves"`
	ThisMonth  int    `json:"thisMonth"`
	TagsUsed   int    `json:"tagsUsed"`
	TopDomain  string `json:"topDomain"`
}
