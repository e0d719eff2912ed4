package keys

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists key pairs in sqlite. Private keys are encrypted with
// AES-256-GCM before write and decrypted after read.
type SQLiteStore struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil disables private key access.
	now func() time.Time
}

// NewSQLiteStore creates a store over db. encryptionKey must be 32 bytes, or
// nil to allow only List and Delete.
func NewSQLiteStore(db *DB, encryptionKey []byte) (*SQLiteStore, error) {
	if encryptionKey != nil && len(encryptionKey) != 32 {
		return nil, fmt.Errorf("%w: encryption key must be exactly 32 bytes, got %d", core.ErrInvalidArgument, len(encryptionKey))
	}
	return &SQLiteStore{db: db, key: encryptionKey, now: time.Now}, nil
}

// Get implements core.KeyReader.
func (s *SQLiteStore) Get(ctx context.Context, key core.OrgTagKey) (core.KeyMaterial, bool, error) {
	if s.key == nil {
		return core.KeyMaterial{}, false, ErrEncryptionKeyNotSet
	}

	const query = `SELECT account, private_key, public_key, fingerprint FROM key_pairs WHERE org = ? AND tag = ?`
	var m core.KeyMaterial
	var encrypted string
	err := s.db.Reader.QueryRowContext(ctx, query, key.Org, key.Tag).
		Scan(&m.Account, &encrypted, &m.PublicKey, &m.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return core.KeyMaterial{}, false, nil
	}
	if err != nil {
		return core.KeyMaterial{}, false, fmt.Errorf("get key pair %s: %w", key, err)
	}

	m.PrivateKey, err = s.decrypt(encrypted)
	if err != nil {
		return core.KeyMaterial{}, false, fmt.Errorf("decrypt key pair %s: %w", key, err)
	}
	return m, true, nil
}

// Put implements Writer.
func (s *SQLiteStore) Put(ctx context.Context, key core.OrgTagKey, m core.KeyMaterial) error {
	if err := key.Validate(); err != nil {
		return err
	}
	encrypted, err := s.encrypt(m.PrivateKey)
	if err != nil {
		return err
	}

	const query = `INSERT INTO key_pairs (org, tag, account, private_key, public_key, fingerprint, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (org, tag) DO UPDATE SET
	account = excluded.account,
	private_key = excluded.private_key,
	public_key = excluded.public_key,
	fingerprint = excluded.fingerprint,
	updated_at = excluded.updated_at`
	_, err = s.db.Writer.ExecContext(ctx, query,
		key.Org, key.Tag, m.Account, encrypted, m.PublicKey, m.Fingerprint, s.timestamp())
	if err != nil {
		return fmt.Errorf("put key pair %s: %w", key, err)
	}
	return nil
}

// PutIfAbsent implements Writer.
func (s *SQLiteStore) PutIfAbsent(ctx context.Context, key core.OrgTagKey, m core.KeyMaterial) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	encrypted, err := s.encrypt(m.PrivateKey)
	if err != nil {
		return false, err
	}

	const query = `INSERT INTO key_pairs (org, tag, account, private_key, public_key, fingerprint, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (org, tag) DO NOTHING`
	res, err := s.db.Writer.ExecContext(ctx, query,
		key.Org, key.Tag, m.Account, encrypted, m.PublicKey, m.Fingerprint, s.timestamp())
	if err != nil {
		return false, fmt.Errorf("put key pair %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("put key pair %s: %w", key, err)
	}
	return n == 1, nil
}

// List returns all stored key pairs without private keys, ordered by key.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	const query = `SELECT org, tag, account, public_key, fingerprint, updated_at FROM key_pairs ORDER BY org, tag`
	rows, err := s.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list key pairs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updatedAt string
		if err := rows.Scan(&e.Key.Org, &e.Key.Tag, &e.Account, &e.PublicKey, &e.Fingerprint, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan key pair: %w", err)
		}
		e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for key pair %s: %w", e.Key, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate key pairs: %w", err)
	}
	return entries, nil
}

// Delete removes the key pair for key. It reports whether a row was removed.
func (s *SQLiteStore) Delete(ctx context.Context, key core.OrgTagKey) (bool, error) {
	const query = `DELETE FROM key_pairs WHERE org = ? AND tag = ?`
	res, err := s.db.Writer.ExecContext(ctx, query, key.Org, key.Tag)
	if err != nil {
		return false, fmt.Errorf("delete key pair %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete key pair %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce prepended to the ciphertext.
func (s *SQLiteStore) encrypt(plaintext string) (string, error) {
	if s.key == nil {
		return "", ErrEncryptionKeyNotSet
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// nonce || ciphertext || tag
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *SQLiteStore) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func (s *SQLiteStore) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
