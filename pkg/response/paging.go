package response

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Page reads page and limit query parameters, clamped to sane bounds.
func Page(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// Paged sends a 200 listing with its pagination block.
func Paged(c *gin.Context, key string, items interface{}, pagination interface{}) {
	OK(c, gin.H{key: items, "pagination": pagination})
}
