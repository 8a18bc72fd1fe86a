package models

import "time"

// DefaultContentType is used when an upload carries no content type
const DefaultContentType = "application/octet-stream"

// FileInfo describes a stored blob without its content
type FileInfo struct {
	FileID      string    `json:"file_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Length      int64     `json:"length"`
	ChunkSize   int       `json:"chunk_size"`
	ClaimID     string    `json:"claim_id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// FileUploadResult reports the outcome for one file of a multi-file upload
type FileUploadResult struct {
	Filename string `json:"filename"`
	FileID   string `json:"file_id,omitempty"`
	Size     int64  `json:"size"`
	Error    string `json:"error,omitempty"`
}

// FileUploadResponse is returned by POST /claims/:claimId/files
type FileUploadResponse struct {
	ClaimID string             `json:"claim_id"`
	FileIDs []string           `json:"file_ids"`
	Results []FileUploadResult `json:"results"`
	Error   string             `json:"error,omitempty"`
}

// FileListResponse is returned by the listing endpoints
type FileListResponse struct {
	Files []FileInfo `json:"files"`
	Total int        `json:"total"`
}
