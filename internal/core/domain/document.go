package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	MimeType      string         `json:"mime_type"`
	StoragePath   string         `json:"storage_path"`
	Title         string         `json:"title"`
	Category      string         `json:"category,omitempty"`
	ProductType   string         `json:"product_type,omitempty"`
	SportCategory string         `json:"sport_category,omitempty"`
	Keywords      []string       `json:"keywords,omitempty"`
	BlockCount    int            `json:"block_count"`
	Status        DocumentStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type UploadRequest struct {
	Filename string
	MimeType string
	Title    string
	Category string
}

type Classification struct {
	ProductType   string   `json:"product_type"`
	SportCategory string   `json:"sport_category"`
	Keywords      []string `json:"keywords"`
}
