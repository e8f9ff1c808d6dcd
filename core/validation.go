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


package core

import (
	"fmt"
	"regexp"
	"strings"
)

var imageIDPattern = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// Known severity levels, lowercase.
var severityLevels = map[string]bool{
	"low": true, "medium": true, "high": true, "critical": true,
}

// Known SBOM formats.
var sbomFormats = map[string]bool{
	"spdx": true, "cyclonedx": true,
}

// ValidateImageID checks the sha256:<64 hex> digest pattern.
func ValidateImageID(imageId string) error {
	if !imageIDPattern.MatchString(imageId) {
		return fmt.Errorf("%w: image_id must match sha256:<64 hex chars>, got %q", ErrValidation, imageId)
	}
	return nil
}

// ValidateContainerMetadata validates the required fields of a container
// submission. Failures are non-retryable.
//
// Required: image_id (digest pattern), image_tag, registry, repository.
// Optional fields are validated only when present.
func ValidateContainerMetadata(meta *ContainerMetadata) error {
	if meta == nil {
		return fmt.Errorf("%w: container_metadata is required for container source", ErrValidation)
	}
	if err := ValidateImageID(meta.ImageId); err != nil {
		return err
	}
	if strings.TrimSpace(meta.ImageTag) == "" {
		return fmt.Errorf("%w: image_tag is required", ErrValidation)
	}
	if strings.TrimSpace(meta.Registry) == "" {
		return fmt.Errorf("%w: registry is required", ErrValidation)
	}
	if strings.TrimSpace(meta.Repository) == "" {
		return fmt.Errorf("%w: repository is required", ErrValidation)
	}
	if meta.SBOMFormat != "" && !sbomFormats[strings.ToLower(meta.SBOMFormat)] {
		return fmt.Errorf("%w: unknown sbom_format %q", ErrValidation, meta.SBOMFormat)
	}
	for cveId, vuln := range meta.Vulnerabilities {
		if strings.TrimSpace(cveId) == "" {
			return fmt.Errorf("%w: vulnerability with empty CVE id", ErrValidation)
		}
		if vuln.Severity != "" && !severityLevels[strings.ToLower(vuln.Severity)] {
			return fmt.Errorf("%w: unknown severity %q for %s", ErrValidation, vuln.Severity, cveId)
		}
	}
	return nil
}

// ValidateSubmission validates the submission shape synchronously, before
// any task is created. The source field selects which payload must be
// present; anything malformed is rejected here rather than failing a task.
func ValidateSubmission(sub *Submission) error {
	if sub == nil {
		return fmt.Errorf("%w: submission is nil", ErrValidation)
	}
	if !sub.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, sub.Source)
	}
	switch sub.Source {
	case SourceUpload:
		if sub.DocumentBytes == "" {
			return fmt.Errorf("%w: document_bytes required for upload source", ErrValidation)
		}
	case SourceBlobRef:
		if strings.TrimSpace(sub.BlobRef) == "" {
			return fmt.Errorf("%w: blob_ref required for blob-ref source", ErrValidation)
		}
	case SourceURL:
		if strings.TrimSpace(sub.URL) == "" {
			return fmt.Errorf("%w: url required for url source", ErrValidation)
		}
	case SourceContainer:
		if err := ValidateContainerMetadata(sub.Container); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeSeverity lowercases a severity level, defaulting unknown or
// empty values to "unknown".
func NormalizeSeverity(severity string) string {
	s := strings.ToLower(strings.TrimSpace(severity))
	if !severityLevels[s] {
		return "unknown"
	}
	return s
}
