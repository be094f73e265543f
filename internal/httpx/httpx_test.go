package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type item struct {
	Name  string `json:"name" binding:"required"`
	Count int    `json:"count" binding:"gte=0"`
}

type payload struct {
	ID    int64  `json:"id" binding:"required,gt=0"`
	Items []item `json:"items" binding:"required,min=1,dive"`
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())

	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", seen)
}

func TestLogger(t *testing.T) {
	// Arrange
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	// Act
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	// Assert
	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "request handled", entries[0].Message)
	assert.Equal(t, "request failed", entries[1].Message)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[1].ContextMap()["status"])
}

func TestFieldErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	UseJSONFieldNames()

	r := gin.New()
	var fields map[string]string
	var ok bool
	r.POST("/", func(c *gin.Context) {
		var p payload
		fields, ok = FieldErrors(c.ShouldBindJSON(&p))
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id": -1, "items": [{"count": -2}]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	assert.Equal(t, "must be greater than 0", fields["id"])
	assert.Equal(t, "is required", fields["items[0].name"])
	assert.Equal(t, "must be greater than or equal to 0", fields["items[0].count"])
}

func TestFieldErrors_Slice(t *testing.T) {
	gin.SetMode(gin.TestMode)
	UseJSONFieldNames()

	r := gin.New()
	var fields map[string]string
	var ok bool
	r.POST("/", func(c *gin.Context) {
		var items []item
		fields, ok = FieldErrors(c.ShouldBindJSON(&items))
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[{"name": "a"}, {"count": -1}]`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"name":  "is required",
		"count": "must be greater than or equal to 0",
	}, fields)
}

func TestFieldErrors_NotValidation(t *testing.T) {
	fields, ok := FieldErrors(errors.New("unexpected EOF"))

	assert.False(t, ok)
	assert.Nil(t, fields)
}
