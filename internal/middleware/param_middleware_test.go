package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestExtractUintParam(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		wantStatus int
		wantID     uint
	}{
		{"valid id", "42", http.StatusOK, 42},
		{"zero id rejected", "0", http.StatusBadRequest, 0},
		{"negative rejected", "-1", http.StatusBadRequest, 0},
		{"non-numeric rejected", "abc", http.StatusBadRequest, 0},
		{"empty rejected", "", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/addresses/"+tt.value, nil)
			c.Params = gin.Params{{Key: "id", Value: tt.value}}

			ExtractUintParam("id", "addressID")(c)

			if tt.wantStatus == http.StatusOK {
				assert.False(t, c.IsAborted())
				got, exists := c.Get("addressID")
				require.True(t, exists)
				assert.Equal(t, tt.wantID, got)
				return
			}

			assert.True(t, c.IsAborted())
			assert.Equal(t, tt.wantStatus, w.Code)
			_, exists := c.Get("addressID")
			assert.False(t, exists)
		})
	}
}
