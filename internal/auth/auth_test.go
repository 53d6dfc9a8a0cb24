package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAuthorizer_IsAdmin(t *testing.T) {
	a := NewAuthorizer([]string{" Owner@EnergyTi.com.br ", ""}, true)

	assert.True(t, a.IsAdmin("owner@energyti.com.br"))
	assert.True(t, a.IsAdmin("OWNER@energyti.com.br "))
	assert.False(t, a.IsAdmin("customer@gmail.com"))
	assert.False(t, a.IsAdmin(""))
	assert.False(t, a.IsAdmin("   "))
}

func TestAuthorizer_WithoutAllowList(t *testing.T) {
	a := NewAuthorizer(nil, false)

	assert.True(t, a.IsAdmin("anyone@gmail.com"))
	assert.False(t, a.IsAdmin(""))
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewAuthorizer([]string{"owner@energyti.com.br"}, true)

	router := gin.New()
	router.GET("/admin", a.RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, Identity(c))
	})

	cases := []struct {
		name     string
		identity string
		code     int
	}{
		{"missing identity", "", http.StatusUnauthorized},
		{"not on allow-list", "customer@gmail.com", http.StatusForbidden},
		{"admin", "Owner@energyti.com.br", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.identity != "" {
				req.Header.Set(IdentityHeader, tc.identity)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "owner@energyti.com.br", w.Body.String())
			}
		})
	}
}
