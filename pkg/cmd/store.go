/*
Copyright 2026 David Arnold
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gitlab.com/davidxarnold/nodecreds/pkg/cloud"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
	"gitlab.com/davidxarnold/nodecreds/pkg/keys"
)

// encryptionKey decodes keys-encryption-key (64 hex characters). An unset
// key yields nil.
func encryptionKey() ([]byte, error) {
	s := viper.GetString("keys-encryption-key")
	if s == "" {
		return nil, nil
	}
	k, err := hex.DecodeString(s)
	if err != nil || len(k) != 32 {
		return nil, fmt.Errorf("%w: keys-encryption-key must be 64 hex characters", core.ErrInvalidArgument)
	}
	return k, nil
}

// openKeyStore opens the sqlite key store. When requireKey is set an
// encryption key must be configured.
func openKeyStore(requireKey bool) (*keys.SQLiteStore, func() error, error) {
	k, err := encryptionKey()
	if err != nil {
		return nil, nil, err
	}
	if requireKey && k == nil {
		return nil, nil, fmt.Errorf("%w: set %s_KEYS_ENCRYPTION_KEY or keys-encryption-key in the config file",
			keys.ErrEncryptionKeyNotSet, envPrefix)
	}

	path := viper.GetString("keys-db")
	if path == "" {
		path = defaultKeysDB()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create key database directory: %w", err)
	}

	db, err := keys.OpenDB(path)
	if err != nil {
		return nil, nil, err
	}
	store, err := keys.NewSQLiteStore(db, k)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

// openKeyReader returns the key store used for enrichment. Without an
// encryption key no stored private keys can be read, so nodes only receive
// their image defaults.
func openKeyReader() (keys.Reader, func() error, error) {
	k, err := encryptionKey()
	if err != nil {
		return nil, nil, err
	}
	if k == nil {
		log.Warn("key store encryption key not set, using image default credentials only")
		return keys.NewMemory(), func() error { return nil }, nil
	}
	store, closeFn, err := openKeyStore(true)
	if err != nil {
		return nil, nil, err
	}
	return store, closeFn, nil
}

// imageCatalog builds the catalog from the "images" config list.
func imageCatalog() (*cloud.ImageCatalog, error) {
	var rules []cloud.ImageRule
	if err := viper.UnmarshalKey("images", &rules); err != nil {
		return nil, fmt.Errorf("%w: images: %v", core.ErrInvalidArgument, err)
	}
	return cloud.NewImageCatalog(rules...)
}
