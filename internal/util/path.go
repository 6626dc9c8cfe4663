// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SanitizeFilename strips path components and any character outside a
// conservative allow-list, so a server-supplied filename can never escape
// the output directory. Returns fallback when nothing safe remains.
func SanitizeFilename(name, fallback string) string {
	// Drop any directory prefix, whichever separator style was used.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	clean := b.String()

	// A name of only dots would still be a traversal hazard.
	if clean == "" || strings.Trim(clean, ".") == "" {
		return fallback
	}
	return clean
}

// UniquePath returns a path under dir for name that does not collide with
// an existing file. Collisions get a numeric suffix before the extension:
// plot.png, plot_1.png, plot_2.png.
func UniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
