package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/descilabs/desci-ledger/ledger/pkg/server"
)

func TestParsePagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", query: "", wantLimit: server.DefaultLimit, wantOffset: 0},
		{name: "explicit limit and offset", query: "?limit=25&offset=50", wantLimit: 25, wantOffset: 50},
		{name: "limit clamped to max", query: "?limit=99999", wantLimit: server.MaxLimit, wantOffset: 0},
		{name: "zero limit ignored", query: "?limit=0", wantLimit: server.DefaultLimit, wantOffset: 0},
		{name: "negative offset ignored", query: "?offset=-5", wantLimit: server.DefaultLimit, wantOffset: 0},
		{name: "garbage ignored", query: "?limit=abc&offset=xyz", wantLimit: server.DefaultLimit, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			p := server.ParsePagination(req, server.DefaultLimit)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}
