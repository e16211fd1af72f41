package types

// PageMeta is the pagination block list endpoints return next to their items.
type PageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func NewPageMeta(total, page, limit int) PageMeta {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return PageMeta{Total: total, Page: page, Limit: limit, Pages: pages}
}
