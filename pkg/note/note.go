// Package note holds the note model and the REST client for the
// persistence backend.
package note

// Note is the persisted document as the backend serializes it. Dates are
// day-resolution strings.
type Note struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category"`
	Owner      int64  `json:"owner"`
	OwnerName  string `json:"ownerName"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	ShareToken string `json:"share_token,omitempty"`
	IsShared   bool   `json:"is_shared"`
}

// Update is the writable subset of a note.
type Update struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}
