package httpd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.4, 10.0.0.1")
	r.RemoteAddr = "10.0.0.1:54321"

	if got := clientIP(r); got != "203.0.113.4" {
		t.Errorf("clientIP() = %q, want 203.0.113.4", got)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:443"

	if got := clientIP(r); got != "192.0.2.7" {
		t.Errorf("clientIP() = %q, want 192.0.2.7", got)
	}
}

func TestGenerateRequestIDIsUniqueAndHex(t *testing.T) {
	a := generateRequestID()
	b := generateRequestID()
	if a == b {
		t.Error("generateRequestID() produced duplicate IDs")
	}
	if len(a) != 16 {
		t.Errorf("generateRequestID() length = %d, want 16", len(a))
	}
}

func TestBuildHealthPayload(t *testing.T) {
	products := []productInfo{{ID: "wb", Name: "Workbook", Lang: "en", Collection: "wb_en", Endpoint: "/mcp/wb"}}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	payload := buildHealthPayload(products, "1.0.0", now)

	if payload["status"] != "ok" || payload["version"] != "1.0.0" {
		t.Errorf("buildHealthPayload() = %+v", payload)
	}
	if payload["timestamp"] != "2026-07-31T12:00:00Z" {
		t.Errorf("buildHealthPayload() timestamp = %v", payload["timestamp"])
	}
	got, ok := payload["products"].([]productInfo)
	if !ok || len(got) != 1 || got[0].ID != "wb" {
		t.Errorf("buildHealthPayload() products = %+v", payload["products"])
	}
}

func TestBuildManifestMarkdownListsEachProduct(t *testing.T) {
	products := []productInfo{
		{ID: "wb", Name: "Workbook", Lang: "en", Collection: "wb_en", Endpoint: "/mcp/wb"},
		{ID: "wb", Name: "Workbook", Lang: "zh", Collection: "wb_zh", Endpoint: "/mcp/wb-zh"},
	}

	md := buildManifestMarkdown(products, "1.0.0")

	if !strings.Contains(md, "/mcp/wb") || !strings.Contains(md, "/mcp/wb-zh") {
		t.Errorf("buildManifestMarkdown() missing an endpoint:\n%s", md)
	}
	if !strings.Contains(md, "mcpServers") {
		t.Errorf("buildManifestMarkdown() missing sample client config:\n%s", md)
	}
}

func TestBuildManifestMarkdownEmpty(t *testing.T) {
	md := buildManifestMarkdown(nil, "1.0.0")
	if !strings.Contains(md, "No products") {
		t.Errorf("buildManifestMarkdown(nil) = %q", md)
	}
}

func TestProductRegistryRegisterAndGet(t *testing.T) {
	reg := newProductRegistry()
	mp := &mountedProduct{product: &Product{Resolved: nil}}

	if err := reg.Register("wb", mp); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := reg.Get("wb")
	if !ok || got != mp {
		t.Errorf("Get(%q) = %+v, %v", "wb", got, ok)
	}
}

func TestProductRegistryRejectsDuplicateMount(t *testing.T) {
	reg := newProductRegistry()
	mp := &mountedProduct{product: &Product{Resolved: nil}}

	if err := reg.Register("wb", mp); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register("wb", mp); err == nil {
		t.Error("Register() should reject a second mount of the same product id")
	}
}

func TestProductRegistryGetUnknownProduct(t *testing.T) {
	reg := newProductRegistry()
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get() of unmounted product id should report ok=false")
	}
}

func TestProductRegistryList(t *testing.T) {
	reg := newProductRegistry()
	_ = reg.Register("wb", &mountedProduct{product: &Product{Resolved: nil}})
	_ = reg.Register("doc", &mountedProduct{product: &Product{Resolved: nil}})

	if got := len(reg.List()); got != 2 {
		t.Errorf("List() length = %d, want 2", got)
	}
}
