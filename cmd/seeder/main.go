package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/poiesic/shipdex/ai/mock"
	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/ingestion"
	"github.com/poiesic/shipdex/storage"
	"github.com/poiesic/shipdex/storage/badger"
	"github.com/poiesic/shipdex/workflow"
)

// Sample documents ingested when no seed file is given.
var documents = []string{
	"The api-gateway service terminates TLS at the edge and forwards traffic to internal services over mutual TLS.",
	"Rolling deployments drain connections for thirty seconds before the old replica set is scaled down.",
	"The payments worker consumes settlement events and retries failed captures with exponential backoff.",
	"Database migrations run in a dedicated job before the new application image receives traffic.",
	"Vulnerability scans run nightly against every image tag still referenced by a live deployment.",
	"The build pipeline signs each image digest and attaches an SPDX software bill of materials.",
	"Incident runbooks live next to the service they describe and are reindexed on every merge.",
	"Base images are rebuilt weekly to pick up upstream security patches in the distroless layers.",
	"The search cluster keeps two replicas per shard and rebalances when a node is cordoned.",
	"Feature flags default to off in production and are cleaned up within two release cycles.",
	"Certificate rotation is automated; services reload their TLS material without a restart.",
	"The artifact registry garbage-collects untagged manifests after fourteen days.",
	"Canary analysis compares error rates and latency percentiles before promoting a release.",
	"Backups are restored into a staging cluster every Sunday to prove the procedure still works.",
	"The ingress controller rate-limits unauthenticated requests by client network prefix.",
}

// Sample container records covering a few repositories and shared CVEs.
var containers = []core.ContainerMetadata{
	{
		ImageId:    "sha256:1111111111111111111111111111111111111111111111111111111111111111",
		ImageTag:   "v1.4.2",
		Registry:   "registry.example.com",
		Repository: "platform/api-gateway",
		SBOMUri:    "s3://sboms/api-gateway-v1.4.2.spdx.json",
		SBOMFormat: "spdx",
		OS:         "linux",
		Vulnerabilities: map[string]core.Vulnerability{
			"CVE-2024-6119": {Severity: "high", Package: "openssl", Version: "3.0.13", FixedVersion: "3.0.15"},
		},
	},
	{
		ImageId:    "sha256:2222222222222222222222222222222222222222222222222222222222222222",
		ImageTag:   "v0.9.1",
		Registry:   "registry.example.com",
		Repository: "platform/payments-worker",
		SBOMUri:    "s3://sboms/payments-worker-v0.9.1.cdx.json",
		SBOMFormat: "cyclonedx",
		OS:         "linux",
		Vulnerabilities: map[string]core.Vulnerability{
			"CVE-2024-6119": {Severity: "high", Package: "openssl", Version: "3.0.13", FixedVersion: "3.0.15"},
			"CVE-2023-45288": {Severity: "medium", Package: "golang.org/x/net", Version: "0.17.0", FixedVersion: "0.23.0"},
		},
	},
	{
		ImageId:    "sha256:3333333333333333333333333333333333333333333333333333333333333333",
		ImageTag:   "v2.0.0",
		Registry:   "registry.example.com",
		Repository: "platform/search",
		OS:         "linux",
	},
}

var (
	dbPath       = flag.String("db", "./shipdex_db", "path to BadgerDB database directory")
	seedFileName = flag.String("src", "", "file of seed documents, one per line")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// newEngine wires an engine over the stores with mock AI components, so
// seeding needs no running model service.
func newEngine(stores *badger.Stores) (*workflow.Engine, error) {
	blobs := storage.NewMemoryBlobStore()
	provider := mock.NewMockProvider()

	resolver, err := ingestion.NewContentResolver(blobs)
	if err != nil {
		return nil, err
	}
	normalizer := ingestion.NewNormalizer(provider.EntityExtractor())
	chunker, err := ingestion.NewChunkEmbedStage(provider.Embedder())
	if err != nil {
		return nil, err
	}
	writer, err := ingestion.NewMultiStoreWriter(
		stores.Graph, stores.Vectors, stores.Text, stores.Metadata, blobs)
	if err != nil {
		return nil, err
	}

	return workflow.NewEngine(
		stores.Ledger, stores.Checkpoints,
		resolver, normalizer, chunker, writer)
}

func seedDocuments(ctx context.Context, engine *workflow.Engine, source iter.Seq[string]) (int, error) {
	count := 0
	for line := range source {
		if line == "" {
			continue
		}
		_, err := engine.Submit(ctx, &core.Submission{
			Source:        core.SourceUpload,
			MimeType:      "text/plain",
			Tags:          []string{"seed"},
			DocumentBytes: base64.StdEncoding.EncodeToString([]byte(line)),
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func seedContainers(ctx context.Context, engine *workflow.Engine) (int, error) {
	for i := range containers {
		meta := containers[i]
		_, err := engine.Submit(ctx, &core.Submission{
			Source:    core.SourceContainer,
			Tags:      []string{"seed"},
			Container: &meta,
		})
		if err != nil {
			return i, err
		}
	}
	return len(containers), nil
}

func main() {
	stores, err := badger.NewStores(*dbPath, false)
	if err != nil {
		panic(err)
	}
	defer stores.Backend.Close()

	engine, err := newEngine(stores)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	ctx := context.Background()

	var source iter.Seq[string]
	if seedFileName != nil && *seedFileName != "" {
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(documents)
	}

	docCount, err := seedDocuments(ctx, engine, source)
	if err != nil {
		panic(err)
	}
	imageCount, err := seedContainers(ctx, engine)
	if err != nil {
		panic(err)
	}

	engine.Wait()
	fmt.Printf("Seeded %d documents and %d container records into %s\n", docCount, imageCount, *dbPath)
}
