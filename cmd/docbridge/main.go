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

// Command docbridge is the CLI for the documentation retrieval service.
//
// Usage:
//
//	docbridge serve
//	docbridge index --product spreadjs --force
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docbridge/mcp-docs/pkg/chunking"
	"github.com/docbridge/mcp-docs/pkg/embedder"
	"github.com/docbridge/mcp-docs/pkg/httpd"
	"github.com/docbridge/mcp-docs/pkg/indexing"
	"github.com/docbridge/mcp-docs/pkg/loader"
	"github.com/docbridge/mcp-docs/pkg/logging"
	"github.com/docbridge/mcp-docs/pkg/mcpserver"
	"github.com/docbridge/mcp-docs/pkg/productconfig"
	"github.com/docbridge/mcp-docs/pkg/search"
	"github.com/docbridge/mcp-docs/pkg/svcconfig"
	"github.com/docbridge/mcp-docs/pkg/vectorstore"
)

const (
	productsDir    = "products"
	rawDataDir     = "raw_data"
	checkpointsDir = "checkpoints"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the MCP HTTP service."`
	Index   IndexCmd   `cmd:"" help:"Run the indexing pipeline for one or more products."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	LogLevel string `help:"Override LOG_LEVEL for this invocation."`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("docbridge %s\n", buildVersion())
	return nil
}

// ServeCmd starts the MCP HTTP service, mounting one endpoint per configured product.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	env, err := loadEnv(cli)
	if err != nil {
		return err
	}
	log := logging.GetLogger()

	emb := embedder.New(env.VoyageAPIKey, env.VoyageEmbedModel, env.VoyageRerankModel, env.VoyageRPMLimit, env.VoyageTPMLimit)
	store, err := vectorstore.New(vectorstore.Config{
		Host:   env.QdrantHost,
		Port:   env.QdrantPort,
		APIKey: env.QdrantAPIKey,
		UseTLS: env.QdrantTLS,
	})
	if err != nil {
		return fmt.Errorf("connect to vector store: %w", err)
	}

	resolver := productconfig.NewResolver(productsDir)

	srv := httpd.New(httpd.Config{
		Addr:    fmt.Sprintf("%s:%d", env.Host, env.Port),
		Version: buildVersion(),
		Log:     log,
	})

	for _, product := range env.Products {
		resolved, err := resolver.Resolve(product, env.DocLang)
		if err != nil {
			return fmt.Errorf("resolve product %q: %w", product, err)
		}

		searcher := search.New(emb, store, emb, resolved.Collection, resolved.Variant.DocLanguage, resolved.Product.Search, log)

		mcpCfg := mcpserver.Config{Resolved: resolved, Searcher: searcher, Version: buildVersion()}
		getServer := func(*http.Request) *mcp.Server {
			return mcpserver.Build(mcpCfg, log)
		}

		if err := srv.Mount(&httpd.Product{Resolved: resolved, GetServer: getServer}); err != nil {
			return fmt.Errorf("mount product %q: %w", product, err)
		}
		log.Info("mounted product", "product", resolved.Product.ID, "lang", resolved.Variant.Lang, "collection", resolved.Collection)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	return srv.Start(ctx)
}

// IndexCmd runs the offline indexing pipeline for one or more products.
type IndexCmd struct {
	Product []string `help:"Product ids to index (defaults to PRODUCT env var)." placeholder:"ID"`
	Force   bool     `help:"Drop and recreate the collection before indexing."`
}

func (c *IndexCmd) Run(cli *CLI) error {
	env, err := loadEnv(cli)
	if err != nil {
		return err
	}
	log := logging.GetLogger()

	products := c.Product
	if len(products) == 0 {
		products = env.Products
	}

	emb := embedder.New(env.VoyageAPIKey, env.VoyageEmbedModel, env.VoyageRerankModel, env.VoyageRPMLimit, env.VoyageTPMLimit)
	store, err := vectorstore.New(vectorstore.Config{
		Host:   env.QdrantHost,
		Port:   env.QdrantPort,
		APIKey: env.QdrantAPIKey,
		UseTLS: env.QdrantTLS,
	})
	if err != nil {
		return fmt.Errorf("connect to vector store: %w", err)
	}

	resolver := productconfig.NewResolver(productsDir)
	checkpoints := indexing.NewCheckpointStore(checkpointsDir)

	ctx := context.Background()

	for _, product := range products {
		resolved, err := resolver.Resolve(product, env.DocLang)
		if err != nil {
			return fmt.Errorf("resolve product %q: %w", product, err)
		}

		chunker, err := chunking.New(resolved.Product.ChunkerType, chunking.Config{
			ChunkSize: env.ChunkSize,
		})
		if err != nil {
			return fmt.Errorf("build chunker for %q: %w", product, err)
		}

		ld := loader.New(loader.Config{
			BaseDir:    rawDataDir + "/" + resolved.Variant.RawData,
			DocSubdirs: resolved.Product.DocSubdirs,
			Product:    resolved.Product.ID,
			Language:   resolved.Variant.Lang,
		})

		ix := indexing.New(ld, chunker, emb, store, checkpoints, resolved.Collection, log)

		report, err := ix.Run(ctx, indexing.Config{
			Product:   resolved.Product.ID,
			BatchSize: env.BatchSize,
			Force:     c.Force,
		})
		if err != nil {
			return fmt.Errorf("index product %q: %w", product, err)
		}

		log.Info("indexing complete",
			"product", resolved.Product.ID,
			"total", report.Total,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"duration_ms", report.DurationMs,
		)
	}

	return nil
}

// loadEnv loads .env (if present), resolves the process environment, and
// initializes the default logger before any command runs.
func loadEnv(cli *CLI) (*svcconfig.Env, error) {
	_ = godotenv.Load()

	env, err := svcconfig.Load()
	if err != nil {
		return nil, err
	}

	levelStr := env.LogLevel
	if cli.LogLevel != "" {
		levelStr = cli.LogLevel
	}
	level, _ := logging.ParseLevel(levelStr)
	logging.Init(level, os.Stderr)

	return env, nil
}

// buildVersion reports the module version embedded by the Go toolchain, or
// "dev" outside of a tagged build.
func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("docbridge"),
		kong.Description("Hybrid vector+lexical documentation retrieval over MCP."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
