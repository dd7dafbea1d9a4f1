package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesConsolePage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	for _, id := range []string{
		`id="order_id"`, `id="status"`, `id="flash_message"`, `id="cancel-btn"`,
		`id="item_order_id"`, `id="price"`, `id="flash_message_item"`, `id="clear-item-btn"`,
	} {
		if !strings.Contains(string(body), id) {
			t.Errorf("page is missing %s", id)
		}
	}
}

func TestHandlerUnknownFile(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/missing.js", nil)
	rr := httptest.NewRecorder()

	Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
