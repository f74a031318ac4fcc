package schema

import (
	"time"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// UploadRequest names the destination container for a single file upload.
type UploadRequest struct {
	Workspace string `json:"workspace"`
	Folder    string `json:"folder,omitempty"`
	File      File   `json:"file"`
}

// UploadedFileRecord describes a file committed to a workspace.
type UploadedFileRecord struct {
	ID          string    `json:"id"`
	Workspace   string    `json:"workspace"`
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"type,omitempty"`
	ModTime     time.Time `json:"modtime,omitzero"`
}

// UploadResponse is the JSON envelope returned by the collection endpoint.
// Non-2xx responses carry Error where possible; StorageInfo is included on
// success so clients can surface threshold warnings.
type UploadResponse struct {
	Success     bool                `json:"success"`
	Data        *UploadedFileRecord `json:"data,omitempty"`
	Error       string              `json:"error,omitempty"`
	StorageInfo *StorageInfo        `json:"storageInfo,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (r UploadRequest) String() string {
	return types.Stringify(r)
}

func (r UploadedFileRecord) String() string {
	return types.Stringify(r)
}

func (r UploadResponse) String() string {
	return types.Stringify(r)
}
