package model

// FileEntry is one file of a category as returned by a listing.
// It is computed from the live directory contents and never persisted.
type FileEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
