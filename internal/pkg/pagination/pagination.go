// Package pagination parses page/size query parameters and applies them to
// gorm queries.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/replyflow/core/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	DefaultPage = 1
	DefaultSize = 20
	MaxSize     = 100
)

// Query is a validated page request. The zero value is normalized to the
// first default-sized page.
type Query struct {
	Page int
	Size int
}

// FromContext reads ?page= and ?size=, ignoring values that do not parse.
func FromContext(c *gin.Context) Query {
	return Query{
		Page: atoiOr(c.Query("page"), DefaultPage),
		Size: atoiOr(c.Query("size"), DefaultSize),
	}.normalized()
}

func (q Query) normalized() Query {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	switch {
	case q.Size < 1:
		q.Size = DefaultSize
	case q.Size > MaxSize:
		q.Size = MaxSize
	}
	return q
}

// Offset is the number of rows skipped before this page.
func (q Query) Offset() int {
	q = q.normalized()
	return (q.Page - 1) * q.Size
}

// Meta describes this page given the total row count.
func (q Query) Meta(total int64) response.Pagination {
	q = q.normalized()
	pages := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   pages,
		Size:        q.Size,
		HasNextPage: q.Page < pages,
	}
}

// Paginate counts the rows matched by db and loads one page of them into dest.
// The caller's ordering is kept and the primary key breaks ties so pages do
// not overlap.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	q = q.normalized()

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}
	*dest = (*dest)[:0]
	if total > 0 {
		err := db.Session(&gorm.Session{}).Order("id").Offset(q.Offset()).Limit(q.Size).Find(dest).Error
		if err != nil {
			return response.Pagination{}, err
		}
	}
	return q.Meta(total), nil
}

func atoiOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
