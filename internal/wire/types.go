package wire

// HealthResponse from GET /api/v1/health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// BookmarkPayload for PUT /api/v1/bookmarks.
// The server upserts on (owner, year, slug).
type BookmarkPayload struct {
	Owner     string `json:"owner"`
	Year      int    `json:"year"`
	Slug      string `json:"slug"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NotePayload for PUT /api/v1/notes.
// The server upserts on (owner, year, slug, local_id).
type NotePayload struct {
	LocalID    string `json:"local_id"`
	Owner      string `json:"owner"`
	Year       int    `json:"year"`
	Slug       string `json:"slug"`
	Text       string `json:"text"`
	TimeOffset *int   `json:"time_offset,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// UpsertAck is the normalized answer to an upsert: the server-assigned id.
type UpsertAck struct {
	ID string `json:"id"`
}

// BookmarkEntry is a bookmark as listed by GET /api/v1/bookmarks.
type BookmarkEntry struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Year      int    `json:"year"`
	Slug      string `json:"slug"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NoteEntry is a note as listed by GET /api/v1/notes.
type NoteEntry struct {
	ID         string `json:"id"`
	LocalID    string `json:"local_id"`
	Owner      string `json:"owner"`
	Year       int    `json:"year"`
	Slug       string `json:"slug"`
	Text       string `json:"text"`
	TimeOffset *int   `json:"time_offset,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}
