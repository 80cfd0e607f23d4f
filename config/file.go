package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/switchyard/types"
)

// File is a Source backed by a YAML document.
//
// Top-level keys of the document are configuration keys; their values are
// the settings objects. The file is read on every Get, so edits take effect
// on the next operation.
//
// Example:
//
//	switchyard.data_source_config:
//	  primarySource: self_hosted
//	  useManaged: true
//	  selfHostedHost: mysql.internal
//	  selfHostedUser: app
//	  selfHostedPassword: secret
//	  selfHostedDatabase: crm
type File struct {
	path string
}

// Compile-time assertion that File implements Source.
var _ Source = (*File)(nil)

// NewFile creates a Source reading path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Get returns the value of key as JSON.
//
// A missing file or key yields nil, nil.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrConfigurationMalformed, f.path, err)
	}

	v, ok := doc[key]
	if !ok || v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}
