package domain

// BaseModel carries the server-assigned identity and timestamps of a record.
// Timestamps are kept as sent by the contact service; they are only displayed.
type BaseModel struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// ListQuery holds the page number and free-text search term of a list request.
type ListQuery struct {
	Page  int
	Query string
}

// Pagination is the pagination metadata returned with a list response.
// HasMore is taken from the server verbatim; a well-behaved server keeps
// HasMore == (Page < TotalPages).
type Pagination struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// Consistent reports whether HasMore agrees with Page and TotalPages.
func (p Pagination) Consistent() bool {
	return p.HasMore == (p.Page < p.TotalPages)
}
