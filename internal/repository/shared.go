package repository

// Page holds limit/offset parameters for listing entities.
type Page struct {
	Limit  int32
	Offset int32
}

// Bound applies the default and maximum page size.
func (p Page) Bound() Page {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Order selects a whitelisted sort key and direction for listings.
type Order struct {
	Key  string
	Desc bool
}

// Sort keys accepted by List implementations.
const (
	OrderByCreatedAt  = "created_at"
	OrderByNextReview = "next_review"
)
