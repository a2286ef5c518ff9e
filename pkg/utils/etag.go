package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
)

// ETag returns a weak entity tag for body.
func ETag(body []byte) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(body))
}

// ETagMatches reports whether an If-None-Match header value selects tag.
// Comparison is weak, as RFC 9110 requires for If-None-Match.
func ETagMatches(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(tag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}

// JSONWithETag writes body as JSON with an ETag header and answers 304 Not
// Modified when the client already holds the same representation.
func JSONWithETag(c *gin.Context, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		c.JSON(status, body)
		return
	}
	tag := ETag(raw)
	c.Header("ETag", tag)
	if status == http.StatusOK && ETagMatches(c.GetHeader("If-None-Match"), tag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(status, "application/json; charset=utf-8", raw)
}
