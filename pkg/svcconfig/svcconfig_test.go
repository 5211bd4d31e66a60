package svcconfig

import "testing"

func TestParseQdrantURLBareHostPort(t *testing.T) {
	host, port, tls, err := parseQdrantURL("qdrant.internal:6334")
	if err != nil {
		t.Fatalf("parseQdrantURL() error = %v", err)
	}
	if host != "qdrant.internal" || port != 6334 || tls {
		t.Errorf("parseQdrantURL() = (%q, %d, %v)", host, port, tls)
	}
}

func TestParseQdrantURLBareHostNoPort(t *testing.T) {
	host, port, _, err := parseQdrantURL("localhost")
	if err != nil {
		t.Fatalf("parseQdrantURL() error = %v", err)
	}
	if host != "localhost" || port != 6334 {
		t.Errorf("parseQdrantURL() = (%q, %d)", host, port)
	}
}

func TestParseQdrantURLHTTPS(t *testing.T) {
	host, port, tls, err := parseQdrantURL("https://my-cluster.qdrant.io:6334")
	if err != nil {
		t.Fatalf("parseQdrantURL() error = %v", err)
	}
	if host != "my-cluster.qdrant.io" || port != 6334 || !tls {
		t.Errorf("parseQdrantURL() = (%q, %d, %v)", host, port, tls)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV("spreadjs, gcexcel ,gcdocs")
	want := []string{"spreadjs", "gcexcel", "gcdocs"}
	if len(got) != len(want) {
		t.Fatalf("splitCSV() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitCSV()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadFailsWithoutProduct(t *testing.T) {
	t.Setenv("PRODUCT", "")
	if _, err := Load(); err == nil {
		t.Error("Load() with empty PRODUCT should fail")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("PRODUCT", "spreadjs")
	t.Setenv("DOC_LANG", "en")
	t.Setenv("VOYAGE_API_KEY", "test-key")
	t.Setenv("QDRANT_URL", "")
	t.Setenv("PORT", "")

	env, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if env.Port != 8900 {
		t.Errorf("Port = %d, want 8900", env.Port)
	}
	if env.VoyageEmbedModel != "voyage-code-3" {
		t.Errorf("VoyageEmbedModel = %q", env.VoyageEmbedModel)
	}
	if env.ChunkSize != 3000 || env.BatchSize != 128 {
		t.Errorf("ChunkSize/BatchSize = %d/%d", env.ChunkSize, env.BatchSize)
	}
}
