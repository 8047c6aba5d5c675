package domain

import "time"

// FileRecord is the catalog entry for a stored file. VirtualPath always
// equals OwnerName + "/" + (DirectoryPath + "/")? + StoredName.
type FileRecord struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	OwnerName     string    `json:"owner_name"`
	DisplayName   string    `json:"display_name"`
	StoredName    string    `json:"stored_name"`
	VirtualPath   string    `json:"path"`
	DirectoryPath string    `json:"directory_path"`
	ContentType   string    `json:"content_type"`
	ByteSize      int64     `json:"size"`
	CreatedAt     time.Time `json:"created_at"`
}

// DirectoryRecord is the catalog entry for a virtual directory. Path always
// equals (ParentPath + "/")? + Name. Children reference it by path string,
// not by id.
type DirectoryRecord struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	OwnerName  string    `json:"owner_name"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	ParentPath string    `json:"parent_path"`
	CreatedAt  time.Time `json:"created_at"`
}

// DirectoryTreeEntry is a DirectoryRecord flattened for the admin tree view,
// with root directories labeled by their owner.
type DirectoryTreeEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	ParentPath  string `json:"parent_path"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name"`
	DisplayName string `json:"display_name"`
}
