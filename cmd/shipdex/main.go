// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/shipdex"
	"github.com/poiesic/shipdex/ai"
	"github.com/poiesic/shipdex/ai/openai"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/reindex"
	"github.com/poiesic/shipdex/storage"
	"github.com/poiesic/shipdex/storage/badger"
	"github.com/poiesic/shipdex/storage/minio"
)

func main() {
	app := &cli.App{
		Name:  "shipdex",
		Usage: "Artifact ingestion and indexing across graph, vector, text, metadata and blob stores",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "Submit content for ingestion",
				Subcommands: []*cli.Command{
					{
						Name:   "document",
						Usage:  "Submit a document from a file, URL or blob reference",
						Action: submitDocumentCommand,
						Flags: append(commonFlags(),
							&cli.StringFlag{
								Name:  "file",
								Usage: "Path to a local file to upload inline",
							},
							&cli.StringFlag{
								Name:  "url",
								Usage: "Remote URL to fetch",
							},
							&cli.StringFlag{
								Name:  "blob-ref",
								Usage: "Blob store locator of already-stored content",
							},
							&cli.StringFlag{
								Name:  "title",
								Usage: "Document title",
							},
							&cli.StringFlag{
								Name:  "mime-type",
								Usage: "MIME type of the content",
							},
							&cli.StringFlag{
								Name:  "tags",
								Usage: "Comma-separated tags",
							},
						),
					},
					{
						Name:   "container",
						Usage:  "Submit a container image record from a metadata JSON file",
						Action: submitContainerCommand,
						Flags: append(commonFlags(),
							&cli.StringFlag{
								Name:     "metadata-file",
								Usage:    "Path to container metadata JSON",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "tags",
								Usage: "Comma-separated tags",
							},
						),
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the status of an ingestion task",
				Action: statusCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "task",
						Aliases:  []string{"t"},
						Usage:    "Task id",
						Required: true,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List ingestion tasks, most recent first",
				Action: listCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (queued, processing, completed, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of tasks to return",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of tasks to skip",
					},
				},
			},
			{
				Name:   "query",
				Usage:  "Query container artifacts in the graph",
				Action: queryCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:  "registry",
						Usage: "Return images for this registry",
					},
					&cli.StringFlag{
						Name:  "repository",
						Usage: "Return images for this repository",
					},
					&cli.StringFlag{
						Name:  "tag",
						Usage: "Narrow a repository query to one tag",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of images to return",
						Value: 20,
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Hybrid semantic and keyword search over ingested documents",
				Action: searchCommand,
				Flags: append(commonFlags(),
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum number of results",
						Value: 10,
					},
				),
			},
			{
				Name:   "resume-worker",
				Usage:  "Resume in-flight tasks from their checkpoints and run them to completion",
				Action: resumeWorkerCommand,
				Flags:  commonFlags(),
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed stored document chunks with the configured embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:  "ai-host",
						Usage: "OpenAI-compatible service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		dbFlag(),
		&cli.StringFlag{
			Name:  "ai-host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "extractor-model",
			Usage: "Entity extraction model name",
			Value: "qwen2.5:3b",
		},
		&cli.BoolFlag{
			Name:  "minio",
			Usage: "Use the MinIO blob store configured via SHIPDEX_MINIO_* environment variables",
		},
	}
}

// openSystem builds the System from the common flags.
func openSystem(c *cli.Context) (*shipdex.System, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("ai-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithExtractorModel(c.String("extractor-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := []shipdex.SystemOption{shipdex.WithAIConfig(aiConfig)}
	if c.Bool("minio") {
		cfg, err := minio.ConfigFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load MinIO configuration: %w", err)
		}
		blobs, err := minio.NewBlobStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob store: %w", err)
		}
		if err := blobs.EnsureBucket(context.Background(), ""); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket: %w", err)
		}
		opts = append(opts, shipdex.WithBlobStore(blobs))
	}

	return shipdex.NewSystem(c.String("db"), opts...)
}

func submitDocumentCommand(c *cli.Context) error {
	sub := &core.Submission{
		Title:    c.String("title"),
		MimeType: c.String("mime-type"),
		Tags:     splitTags(c.String("tags")),
	}

	switch {
	case c.String("file") != "":
		data, err := os.ReadFile(c.String("file"))
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sub.Source = core.SourceUpload
		sub.DocumentBytes = base64.StdEncoding.EncodeToString(data)
	case c.String("url") != "":
		sub.Source = core.SourceURL
		sub.URL = c.String("url")
	case c.String("blob-ref") != "":
		sub.Source = core.SourceBlobRef
		sub.BlobRef = c.String("blob-ref")
	default:
		return fmt.Errorf("one of --file, --url or --blob-ref is required")
	}

	return runSubmission(c, sub)
}

// containerMetadataFile is the on-disk JSON shape of a container
// submission, matching the submission contract field names.
type containerMetadataFile struct {
	ImageId         string                        `json:"image_id"`
	ImageTag        string                        `json:"image_tag"`
	Registry        string                        `json:"registry"`
	Repository      string                        `json:"repository"`
	SBOMUri         string                        `json:"sbom_uri"`
	SBOMFormat      string                        `json:"sbom_format"`
	CreatedAt       string                        `json:"created_at"`
	SizeBytes       int64                         `json:"size_bytes"`
	Architecture    string                        `json:"architecture"`
	OS              string                        `json:"os"`
	Layers          []string                      `json:"layers"`
	Labels          map[string]string             `json:"labels"`
	EnvVars         map[string]string             `json:"env_vars"`
	Vulnerabilities map[string]vulnerabilityEntry `json:"vulnerabilities"`
}

type vulnerabilityEntry struct {
	Severity     string `json:"severity"`
	Package      string `json:"package"`
	Version      string `json:"version"`
	FixedVersion string `json:"fixed_version"`
	Description  string `json:"description"`
}

func submitContainerCommand(c *cli.Context) error {
	data, err := os.ReadFile(c.String("metadata-file"))
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %w", err)
	}

	var file containerMetadataFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("invalid metadata JSON: %w", err)
	}

	meta := &core.ContainerMetadata{
		ImageId:      file.ImageId,
		ImageTag:     file.ImageTag,
		Registry:     file.Registry,
		Repository:   file.Repository,
		SBOMUri:      file.SBOMUri,
		SBOMFormat:   file.SBOMFormat,
		CreatedAt:    file.CreatedAt,
		SizeBytes:    file.SizeBytes,
		Architecture: file.Architecture,
		OS:           file.OS,
		Layers:       file.Layers,
		Labels:       file.Labels,
		EnvVars:      file.EnvVars,
	}
	if len(file.Vulnerabilities) > 0 {
		meta.Vulnerabilities = make(map[string]core.Vulnerability, len(file.Vulnerabilities))
		for cveId, v := range file.Vulnerabilities {
			meta.Vulnerabilities[cveId] = core.Vulnerability{
				Severity:     v.Severity,
				Package:      v.Package,
				Version:      v.Version,
				FixedVersion: v.FixedVersion,
				Description:  v.Description,
			}
		}
	}

	sub := &core.Submission{
		Source:    core.SourceContainer,
		Tags:      splitTags(c.String("tags")),
		Container: meta,
	}
	return runSubmission(c, sub)
}

// runSubmission drives one submission to a terminal state and prints the
// resulting task.
func runSubmission(c *cli.Context, sub *core.Submission) error {
	ctx := context.Background()

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	engine, err := sys.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close()

	accepted, err := engine.Submit(ctx, sub)
	if err != nil {
		return fmt.Errorf("submission rejected: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Task accepted: %s\n", accepted.TaskId)

	engine.Wait()

	task, err := sys.Ledger().Get(ctx, accepted.TaskId)
	if err != nil {
		return err
	}
	return printJSON(task)
}

func statusCommand(c *cli.Context) error {
	sys, err := shipdex.NewSystem(c.String("db"))
	if err != nil {
		return err
	}
	defer sys.Close()

	task, err := sys.Ledger().Get(context.Background(), c.String("task"))
	if err != nil {
		return err
	}
	return printJSON(task)
}

func listCommand(c *cli.Context) error {
	sys, err := shipdex.NewSystem(c.String("db"))
	if err != nil {
		return err
	}
	defer sys.Close()

	filter := storage.TaskFilter{
		Status: core.TaskStatus(c.String("status")),
		Limit:  c.Int("limit"),
		Offset: c.Int("offset"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return fmt.Errorf("invalid status %q", filter.Status)
	}

	tasks, err := sys.Ledger().List(context.Background(), filter)
	if err != nil {
		return err
	}
	return printJSON(tasks)
}

func queryCommand(c *cli.Context) error {
	registry := c.String("registry")
	repository := c.String("repository")
	if (registry == "") == (repository == "") {
		return fmt.Errorf("exactly one of --registry or --repository is required")
	}

	sys, err := shipdex.NewSystem(c.String("db"))
	if err != nil {
		return err
	}
	defer sys.Close()

	reader, err := sys.NewArtifactReader()
	if err != nil {
		return err
	}

	ctx := context.Background()
	limit := c.Int("limit")
	if registry != "" {
		views, err := reader.ByRegistry(ctx, registry, limit)
		if err != nil {
			return err
		}
		return printJSON(views)
	}

	views, err := reader.ByRepository(ctx, repository, c.String("tag"), limit)
	if err != nil {
		return err
	}
	return printJSON(views)
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("search query is required")
	}
	queryText := strings.Join(c.Args().Slice(), " ")

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	searcher, err := sys.NewDocumentSearcher()
	if err != nil {
		return err
	}

	hits, err := searcher.FindDocuments(context.Background(), queryText, c.Int("max-hits"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for _, hit := range hits {
		fmt.Printf("%.3f  %s  %s\n", hit.Score, hit.Document.DocumentId, hit.Document.Title)
	}
	return nil
}

func resumeWorkerCommand(c *cli.Context) error {
	ctx := context.Background()

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	engine, err := sys.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close()

	resumed, err := engine.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Resumed %d task(s)\n", resumed)

	engine.Wait()
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	stores, err := badger.NewStores(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer stores.Backend.Close()

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("ai-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reindexer, err := reindex.NewReindexer(stores.Metadata, stores.Vectors, embedder, config, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create reindexer: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("ai-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
