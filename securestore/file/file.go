// Package file provides a securestore backend that keeps one JSON file per
// record in a single directory. Writes go through a temporary file and a
// rename, so a crashed process never leaves a half-written record behind.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stephnangue/credcache/helper"
	log "github.com/stephnangue/credcache/logger"
	"github.com/stephnangue/credcache/securestore"
)

var _ securestore.Storage = (*FileStorage)(nil)

const recordSuffix = ".json"

// Config holds the file backend configuration.
type Config struct {
	Path string `mapstructure:"path"`
}

// FileStorage stores records under a directory, one file per record, named
// by the record's UID. Attribute matching happens in memory after decoding;
// the directory is the flat "store" the adapter contract assumes.
type FileStorage struct {
	path   string
	logger log.Logger
}

type storedRecord struct {
	Library string `json:"library"`
	Group   string `json:"group"`
	Service string `json:"service"`
	Account string `json:"account"`
	Data    []byte `json:"data"`
}

// NewFileStorage constructs a file backend rooted at conf["path"].
func NewFileStorage(conf map[string]string, logger log.Logger) (securestore.Storage, error) {
	var cfg Config
	if err := mapstructure.Decode(conf, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode file storage config: %w", err)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("'path' must be set for file storage")
	}

	if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStorage{
		path:   cfg.Path,
		logger: logger,
	}, nil
}

func (f *FileStorage) recordPath(uid string) string {
	return filepath.Join(f.path, uid+recordSuffix)
}

func (f *FileStorage) readRecord(uid string) (securestore.AttributeSet, []byte, error) {
	raw, err := os.ReadFile(f.recordPath(uid))
	if err != nil {
		if os.IsNotExist(err) {
			return securestore.AttributeSet{}, nil, securestore.ErrRecordNotFound
		}
		return securestore.AttributeSet{}, nil, err
	}

	var rec storedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return securestore.AttributeSet{}, nil, fmt.Errorf("failed to decode record %s: %w", uid, err)
	}

	return securestore.AttributeSet{
		UID:     uid,
		Library: rec.Library,
		Group:   rec.Group,
		Service: rec.Service,
		Account: rec.Account,
	}, rec.Data, nil
}

func (f *FileStorage) writeRecord(attrs securestore.AttributeSet, data []byte) error {
	rec := storedRecord{
		Library: attrs.Library,
		Group:   attrs.Group,
		Service: attrs.Service,
		Account: attrs.Account,
		Data:    data,
	}
	raw, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	tmp := filepath.Join(f.path, "."+helper.GenerateRandomString(12)+".tmp")
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp, f.recordPath(attrs.UID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

// walk invokes fn for every readable record in the directory. Records that
// fail to decode are logged and skipped, never fatal to the walk.
func (f *FileStorage) walk(fn func(attrs securestore.AttributeSet) bool) error {
	entries, err := os.ReadDir(f.path)
	if err != nil {
		return fmt.Errorf("failed to read storage directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordSuffix) {
			continue
		}
		uid := strings.TrimSuffix(name, recordSuffix)

		attrs, _, err := f.readRecord(uid)
		if err != nil {
			f.logger.Warn("skipping unreadable record",
				log.String("uid", uid),
				log.Err(err),
			)
			continue
		}
		if !fn(attrs) {
			return nil
		}
	}
	return nil
}

// Query returns the attribute sets of all matching records.
func (f *FileStorage) Query(ctx context.Context, filter securestore.Filter) ([]securestore.AttributeSet, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out []securestore.AttributeSet
	err := f.walk(func(attrs securestore.AttributeSet) bool {
		if attrs.Matches(filter) {
			out = append(out, attrs)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Add stores a new record, assigning its UID.
func (f *FileStorage) Add(ctx context.Context, attrs securestore.AttributeSet, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	exists := false
	err := f.walk(func(existing securestore.AttributeSet) bool {
		if existing.Matches(attrs.Filter()) {
			exists = true
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if exists {
		return securestore.ErrAlreadyExists
	}

	uid, err := helper.GenerateRecordUID()
	if err != nil {
		return err
	}
	attrs.UID = uid

	return f.writeRecord(attrs, data)
}

// Update replaces the data of the record with the exact given attributes.
func (f *FileStorage) Update(ctx context.Context, attrs securestore.AttributeSet, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	existing, _, err := f.readRecord(attrs.UID)
	if err != nil {
		return err
	}
	if existing != attrs {
		return securestore.ErrRecordNotFound
	}

	return f.writeRecord(attrs, data)
}

// Delete removes every record matching the filter.
func (f *FileStorage) Delete(ctx context.Context, filter securestore.Filter) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var uids []string
	err := f.walk(func(attrs securestore.AttributeSet) bool {
		if attrs.Matches(filter) {
			uids = append(uids, attrs.UID)
		}
		return true
	})
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return securestore.ErrRecordNotFound
	}

	for _, uid := range uids {
		if err := os.Remove(f.recordPath(uid)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete record %s: %w", uid, err)
		}
	}
	return nil
}

// ReadData returns the opaque bytes of one record.
func (f *FileStorage) ReadData(ctx context.Context, attrs securestore.AttributeSet) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	existing, data, err := f.readRecord(attrs.UID)
	if err != nil {
		return nil, err
	}
	if existing != attrs {
		return nil, securestore.ErrRecordNotFound
	}
	return data, nil
}
