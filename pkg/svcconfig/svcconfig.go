// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package svcconfig resolves the process-level environment configuration:
// which products to serve, the Voyage and Qdrant connection settings, and
// the indexing/logging tunables. It fails closed with a ConfigError naming
// the offending variable.
package svcconfig

import (
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/docbridge/mcp-docs/pkg/docerrors"
)

// Env is the resolved process configuration, loaded once at startup.
type Env struct {
	Products []string
	DocLang  string

	Host string
	Port int

	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantTLS    bool

	VoyageAPIKey      string
	VoyageEmbedModel  string
	VoyageRerankModel string
	VoyageRPMLimit    int64
	VoyageTPMLimit    int64

	ChunkSize int
	BatchSize int

	LogLevel string
}

// Load reads and validates the process environment. PRODUCT, DOC_LANG, and
// VOYAGE_API_KEY are required; everything else defaults per §6 of the
// service manifest.
func Load() (*Env, error) {
	products := splitCSV(os.Getenv("PRODUCT"))
	if len(products) == 0 {
		return nil, docerrors.NewConfigError("", "PRODUCT", "required environment variable is unset or empty", nil)
	}

	docLang := os.Getenv("DOC_LANG")
	if docLang == "" {
		return nil, docerrors.NewConfigError("", "DOC_LANG", "required environment variable is unset", nil)
	}

	voyageKey := os.Getenv("VOYAGE_API_KEY")
	if voyageKey == "" {
		return nil, docerrors.NewConfigError("", "VOYAGE_API_KEY", "required environment variable is unset", nil)
	}

	qdrantHost, qdrantPort, qdrantTLS, err := parseQdrantURL(getenvDefault("QDRANT_URL", "localhost:6334"))
	if err != nil {
		return nil, docerrors.NewConfigError("", "QDRANT_URL", err.Error(), err)
	}

	rpmLimit, err := getenvInt64("VOYAGE_RPM_LIMIT", 2000)
	if err != nil {
		return nil, docerrors.NewConfigError("", "VOYAGE_RPM_LIMIT", err.Error(), err)
	}
	tpmLimit, err := getenvInt64("VOYAGE_TPM_LIMIT", 3_000_000)
	if err != nil {
		return nil, docerrors.NewConfigError("", "VOYAGE_TPM_LIMIT", err.Error(), err)
	}
	chunkSize, err := getenvInt("CHUNK_SIZE", 3000)
	if err != nil {
		return nil, docerrors.NewConfigError("", "CHUNK_SIZE", err.Error(), err)
	}
	batchSize, err := getenvInt("BATCH_SIZE", 128)
	if err != nil {
		return nil, docerrors.NewConfigError("", "BATCH_SIZE", err.Error(), err)
	}
	port, err := getenvInt("PORT", 8900)
	if err != nil {
		return nil, docerrors.NewConfigError("", "PORT", err.Error(), err)
	}

	return &Env{
		Products: products,
		DocLang:  docLang,

		Host: getenvDefault("HOST", "0.0.0.0"),
		Port: port,

		QdrantHost:   qdrantHost,
		QdrantPort:   qdrantPort,
		QdrantAPIKey: os.Getenv("QDRANT_API_KEY"),
		QdrantTLS:    qdrantTLS,

		VoyageAPIKey:      voyageKey,
		VoyageEmbedModel:  getenvDefault("VOYAGE_EMBED_MODEL", "voyage-code-3"),
		VoyageRerankModel: getenvDefault("VOYAGE_RERANK_MODEL", "rerank-2.5"),
		VoyageRPMLimit:    rpmLimit,
		VoyageTPMLimit:    tpmLimit,

		ChunkSize: chunkSize,
		BatchSize: batchSize,

		LogLevel: getenvDefault("LOG_LEVEL", "info"),
	}, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func getenvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// parseQdrantURL accepts either a bare "host:port" pair or a full
// "http(s)://host:port" URL and returns host, gRPC port, and whether TLS
// should be used.
func parseQdrantURL(raw string) (host string, port int, tls bool, err error) {
	if !strings.Contains(raw, "://") {
		h, p, splitErr := splitHostPort(raw, 6334)
		return h, p, false, splitErr
	}

	u, parseErr := url.Parse(raw)
	if parseErr != nil {
		return "", 0, false, parseErr
	}
	tls = u.Scheme == "https"
	defaultPort := 6334
	h, p, splitErr := splitHostPort(u.Host, defaultPort)
	return h, p, tls, splitErr
}

func splitHostPort(hostport string, defaultPort int) (string, int, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, defaultPort, nil
	}
	idx := strings.LastIndex(hostport, ":")
	host := hostport[:idx]
	portStr := hostport[idx+1:]
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
