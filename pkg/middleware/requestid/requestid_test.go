package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, Value(c)) })

	cases := []struct {
		name   string
		header string
		reuse  bool
	}{
		{name: "generated", header: "", reuse: false},
		{name: "reused", header: "abc-123_x.y", reuse: true},
		{name: "too long", header: strings.Repeat("a", 65), reuse: false},
		{name: "unsafe characters", header: "abc\ninjected", reuse: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(headerKey, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(headerKey)
			assert.Equal(t, got, w.Body.String())
			if tc.reuse {
				assert.Equal(t, tc.header, got)
			} else {
				assert.NotEqual(t, tc.header, got)
				assert.Len(t, got, 32)
			}
		})
	}
}
