package config

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	getter "github.com/hashicorp/go-getter"
)

// FetchExchangeConfig downloads the exchange registry from src into dst.
// src is anything go-getter understands: a local path, an http(s) url, an
// s3 or git source with a "//file" suffix.
func FetchExchangeConfig(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	pwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	// copy local files instead of symlinking them
	getters := maps.Clone(getter.Getters)
	getters["file"] = &getter.FileGetter{Copy: true}

	client := getter.Client{
		Ctx:       ctx,
		Src:       src,
		Dst:       dst,
		Pwd:       pwd,
		Mode:      getter.ClientModeFile,
		Detectors: getter.Detectors,
		Getters:   getters,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("failed to fetch exchange config from %s: %w", src, err)
	}
	return nil
}
