package controllers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2026, 5, 1, 12, 34, 56, 0, time.Local)
	formatted := formatTimePtr(&now)
	assert.IsType(t, "", formatted)

	expected := now.UTC().Format(time.RFC3339)
	assert.Equal(t, expected, formatted)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantOffset int
		wantLimit  int
		wantPage   int
	}{
		{name: "defaults", query: "", wantOffset: 0, wantLimit: 25, wantPage: 1},
		{name: "explicit page", query: "page=3&page_size=10", wantOffset: 20, wantLimit: 10, wantPage: 3},
		{name: "page below one clamps", query: "page=0", wantOffset: 0, wantLimit: 25, wantPage: 1},
		{name: "page size capped", query: "page_size=5000", wantOffset: 0, wantLimit: 100, wantPage: 1},
		{name: "invalid page size falls back", query: "page_size=-1", wantOffset: 0, wantLimit: 25, wantPage: 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			var offset, limit, page int
			app.Get("/list", func(c *fiber.Ctx) error {
				offset, limit, page = parsePagination(c)
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest("GET", "/list?"+tc.query, nil)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tc.wantOffset, offset)
			assert.Equal(t, tc.wantLimit, limit)
			assert.Equal(t, tc.wantPage, page)
		})
	}
}
