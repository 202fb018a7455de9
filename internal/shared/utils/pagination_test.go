package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/constants"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "within bounds", limit: 10, want: 10},
		{name: "zero uses default", limit: 0, want: 20},
		{name: "negative uses default", limit: -5, want: 20},
		{name: "at max", limit: 100, want: 100},
		{name: "above max is capped", limit: 500, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampLimit(tt.limit, 20, 100); got != tt.want {
				t.Errorf("ClampLimit(%d) = %d, want %d", tt.limit, got, tt.want)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "absent", query: "", want: constants.DefaultInboxPageSize},
		{name: "explicit", query: "limit=5", want: 5},
		{name: "not a number", query: "limit=abc", want: constants.DefaultInboxPageSize},
		{name: "capped", query: "limit=1000", want: constants.MaxInboxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/messages?"+tt.query, nil)

			if got := ParseLimit(c); got != tt.want {
				t.Errorf("ParseLimit(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}
