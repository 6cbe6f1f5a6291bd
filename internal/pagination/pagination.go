// Package pagination 提供列表分页的偏移量和页数计算。
package pagination

import (
	"math"
)

// DefaultPerPage 列表默认每页条数。
const DefaultPerPage = 20

// Page 一次分页计算的结果。
type Page struct {
	TotalPages  int
	HasNextPage bool
	HasPrevPage bool
	Offset      int
	Limit       int
}

// Paginate 根据总条数计算第 page 页的窗口。
// 不修正越界的 page：page < 1 或超出总页数由调用方自行兜底。
func Paginate(page, totalCount, perPage int) Page {
	totalPages := int(math.Ceil(float64(totalCount) / float64(perPage)))
	return Page{
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
		Offset:      (page - 1) * perPage,
		Limit:       perPage,
	}
}
