// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads FAR API credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: far_public_key, far_private_key, far_database_id.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// Key file names recognized in the secrets directory. An environment
// variable with the upper-cased name (e.g. FAR_PUBLIC_KEY) overrides
// the corresponding file.
const (
	KeyPublicKey  = "far_public_key"
	KeyPrivateKey = "far_private_key"
	KeyDatabaseID = "far_database_id"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Credentials assembles FAR credentials from the secrets in dir, with
// environment variables taking precedence over file contents. Missing
// parts are left empty; callers validate before signing requests.
func Credentials(dir string) (types.Credentials, error) {
	values, err := Load(dir)
	if err != nil {
		return types.Credentials{}, err
	}

	pick := func(key string) string {
		if env := strings.TrimSpace(os.Getenv(strings.ToUpper(key))); env != "" {
			return env
		}
		return values[key]
	}

	return types.Credentials{
		PublicKey:  pick(KeyPublicKey),
		PrivateKey: pick(KeyPrivateKey),
		DatabaseID: pick(KeyDatabaseID),
	}, nil
}
