package pkg

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gocontacts/internal/domain"
)

const defaultPage = 1

// ParseListQuery extracts the page number and search term from query params.
// Invalid or missing pages default to 1.
func ParseListQuery(c *gin.Context) domain.ListQuery {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if page < 1 {
		page = defaultPage
	}
	return domain.ListQuery{
		Page:  page,
		Query: strings.TrimSpace(c.Query("q")),
	}
}

// SearchURL returns base with the search term reflected as the q parameter.
// An empty term yields base unchanged, so the URL stays clean.
func SearchURL(base, term string) string {
	if term == "" {
		return base
	}
	return base + "?" + url.Values{"q": []string{term}}.Encode()
}
