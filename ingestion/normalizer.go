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


package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/poiesic/shipdex/ai"
	"github.com/poiesic/shipdex/core"
)

// Normalizer converts raw submission content into the canonical
// NormalizedDocument form: plain text plus extracted entities, or a
// validated container artifact.
type Normalizer struct {
	extractor ai.EntityExtractor
	clock     func() time.Time
	logger    *slog.Logger
}

// NewNormalizer creates a normalizer. The extractor may be nil, in which
// case no entities are extracted.
func NewNormalizer(extractor ai.EntityExtractor) *Normalizer {
	return &Normalizer{
		extractor: extractor,
		clock:     time.Now,
		logger:    slog.Default().With("component", "normalizer"),
	}
}

// Normalize produces the canonical form of a submission's content.
// Validation failures are permanent; entity extraction failures are
// logged and yield zero entities.
func (n *Normalizer) Normalize(ctx context.Context, sub *core.Submission, content []byte) (*core.NormalizedDocument, error) {
	if sub.Source == core.SourceContainer {
		return n.normalizeContainer(sub, content)
	}
	return n.normalizeDocument(ctx, sub, content)
}

func (n *Normalizer) normalizeContainer(sub *core.Submission, content []byte) (*core.NormalizedDocument, error) {
	meta := sub.Container
	if err := core.ValidateContainerMetadata(meta); err != nil {
		return nil, err
	}

	title := sub.Title
	if title == "" {
		title = meta.Repository + ":" + meta.ImageTag
	}
	tags := appendMissing(sub.Tags, "container", "artifact", meta.Registry)

	now := n.clock().UTC()
	docId := core.DocumentIDFor(core.SourceContainer, meta.Tuple())
	doc := core.Document{
		DocumentId: docId,
		Title:      title,
		MimeType:   "application/json",
		Tags:       tags,
		SourceKind: core.SourceContainer,
		SourceRef:  meta.Tuple(),
		Metadata:   sub.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return &core.NormalizedDocument{
		Document:  doc,
		Text:      containerText(title, meta),
		Container: meta,
		Raw:       content,
	}, nil
}

func (n *Normalizer) normalizeDocument(ctx context.Context, sub *core.Submission, content []byte) (*core.NormalizedDocument, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty content", core.ErrInvalidPayload)
	}

	text, err := normalizeText(sub.MimeType, content)
	if err != nil {
		return nil, err
	}

	title := sub.Title
	if title == "" {
		title = firstLine(text)
	}

	// Inline uploads have no stable locator, so the content itself is
	// the natural key. Remote sources key on their reference.
	naturalKey := sub.Reference()
	if sub.Source == core.SourceUpload {
		naturalKey = fmt.Sprintf("%016x", uint64(core.IDFromContent(string(content))))
	}

	now := n.clock().UTC()
	doc := core.Document{
		DocumentId: core.DocumentIDFor(sub.Source, naturalKey),
		Title:      title,
		MimeType:   sub.MimeType,
		Tags:       sub.Tags,
		SourceKind: sub.Source,
		SourceRef:  sub.Reference(),
		Metadata:   sub.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return &core.NormalizedDocument{
		Document: doc,
		Text:     text,
		Entities: n.extractEntities(ctx, text),
		Raw:      content,
	}, nil
}

// extractEntities runs the extractor and converts its output. Extraction
// is best-effort; a failing extractor never fails the document.
func (n *Normalizer) extractEntities(ctx context.Context, text string) []core.Entity {
	if n.extractor == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	extracted, err := n.extractor.ExtractEntities(ctx, text)
	if err != nil {
		n.logger.Warn("entity extraction failed, continuing without entities", "err", err)
		return nil
	}
	entities := make([]core.Entity, 0, len(extracted))
	for _, e := range extracted {
		if e.Name == "" {
			continue
		}
		entities = append(entities, core.Entity{Name: e.Name, Type: e.Type})
	}
	return entities
}

var htmlTagPattern = regexp.MustCompile(`(?s)<script.*?</script>|<style.*?</style>|<[^>]*>`)

// normalizeText converts raw bytes to plain text based on MIME type.
func normalizeText(mimeType string, content []byte) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch mt {
	case "", "text/plain", "text/markdown":
		return strings.TrimSpace(string(content)), nil

	case "application/json":
		return flattenJSON(content)

	case "text/html":
		text := htmlTagPattern.ReplaceAllString(string(content), " ")
		return collapseWhitespace(text), nil

	default:
		// Unknown types get a printable filter so binary garbage never
		// reaches the chunker.
		return printableFilter(content), nil
	}
}

// flattenJSON renders a JSON document as "path: value" lines so its
// scalar content is searchable.
func flattenJSON(content []byte) (string, error) {
	var parsed any
	if err := json.Unmarshal(content, &parsed); err != nil {
		return "", fmt.Errorf("%w: invalid json: %v", core.ErrInvalidPayload, err)
	}
	var lines []string
	flattenValue("", parsed, &lines)
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

func flattenValue(path string, v any, lines *[]string) {
	switch val := v.(type) {
	case map[string]any:
		for key, child := range val {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			flattenValue(childPath, child, lines)
		}
	case []any:
		for i, child := range val {
			flattenValue(fmt.Sprintf("%s[%d]", path, i), child, lines)
		}
	case nil:
	default:
		*lines = append(*lines, fmt.Sprintf("%s: %v", path, val))
	}
}

func printableFilter(content []byte) string {
	var out strings.Builder
	out.Grow(len(content))
	for _, r := range string(content) {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			out.WriteRune(r)
		}
	}
	return collapseWhitespace(out.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	const maxTitle = 120
	if len(line) > maxTitle {
		line = line[:maxTitle]
	}
	return line
}

// containerText renders a container artifact as searchable prose.
func containerText(title string, meta *core.ContainerMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Container image %s from registry %s.\n", title, meta.Registry)
	fmt.Fprintf(&b, "Repository %s tag %s digest %s.\n", meta.Repository, meta.ImageTag, meta.ImageId)
	if meta.OS != "" || meta.Architecture != "" {
		fmt.Fprintf(&b, "Platform %s/%s.\n", meta.OS, meta.Architecture)
	}
	if meta.SBOMUri != "" {
		fmt.Fprintf(&b, "SBOM %s (%s).\n", meta.SBOMUri, meta.SBOMFormat)
	}
	if len(meta.Vulnerabilities) > 0 {
		cves := make([]string, 0, len(meta.Vulnerabilities))
		for cveId := range meta.Vulnerabilities {
			cves = append(cves, cveId)
		}
		sort.Strings(cves)
		fmt.Fprintf(&b, "Known vulnerabilities: %s.\n", strings.Join(cves, ", "))
		for _, cveId := range cves {
			vuln := meta.Vulnerabilities[cveId]
			fmt.Fprintf(&b, "%s severity %s in package %s %s.\n",
				cveId, core.NormalizeSeverity(vuln.Severity), vuln.Package, vuln.Version)
		}
	}
	return strings.TrimSpace(b.String())
}

func appendMissing(tags []string, extra ...string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags)+len(extra))
	for _, t := range tags {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range extra {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
