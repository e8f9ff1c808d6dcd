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


package minio

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds MinIO connection settings for the blob store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// ConfigFromEnv builds a Config from SHIPDEX_MINIO_* environment
// variables, with local-development defaults.
func ConfigFromEnv() (Config, error) {
	useSSL := false
	if v := os.Getenv("SHIPDEX_MINIO_USE_SSL"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHIPDEX_MINIO_USE_SSL: %q", v)
		}
		useSSL = parsed
	}
	cfg := Config{
		Endpoint:  envString("SHIPDEX_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: envString("SHIPDEX_MINIO_ACCESS_KEY", "shipdex"),
		SecretKey: envString("SHIPDEX_MINIO_SECRET_KEY", "shipdexminio"),
		Region:    envString("SHIPDEX_MINIO_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    envString("SHIPDEX_MINIO_BUCKET", "shipdex-artifacts"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that all required settings are present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
