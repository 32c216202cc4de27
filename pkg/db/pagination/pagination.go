package pagination

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Pagination is the skip/limit window accepted by list endpoints.
type Pagination struct {
	Skip  int `form:"skip" json:"skip"`
	Limit int `form:"limit" json:"limit"`
}

func (p Pagination) Normalize() Pagination {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

type PageInfo struct {
	Skip    int  `json:"skip"`
	Limit   int  `json:"limit"`
	Count   int  `json:"count"`
	HasMore bool `json:"has_more"`
}

// BuildPageInfo expects callers to fetch limit+1 rows and trims the probe row.
func BuildPageInfo[T any](items []T, page Pagination) ([]T, PageInfo) {
	page = page.Normalize()
	hasMore := len(items) > page.Limit
	if hasMore {
		items = items[:page.Limit]
	}
	return items, PageInfo{
		Skip:    page.Skip,
		Limit:   page.Limit,
		Count:   len(items),
		HasMore: hasMore,
	}
}

// Probe returns the window widened by one row for has_more detection.
func (p Pagination) Probe() Pagination {
	p = p.Normalize()
	p.Limit++
	return p
}
