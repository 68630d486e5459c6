package store

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/buildtracker/pkg/build"
)

//go:embed build-schema.json
var buildSchemaJSON []byte

// ErrSchemaViolation reports a recorded build file that does not match the build schema.
var ErrSchemaViolation = errors.New("build file does not match schema")

// ReadFile loads recorded builds from a JSON or YAML file. The file holds a
// single build object or an array of them.
func ReadFile(path string) ([]build.Build, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var document any

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &document)
	default:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		err = decoder.Decode(&document)
	}

	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	builds, err := DecodeBuilds(document)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return builds, nil
}

// DecodeBuilds validates a decoded document against the build schema and
// converts it to builds.
func DecodeBuilds(document any) ([]build.Build, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(buildSchemaJSON),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("validate builds: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			details = append(details, resultErr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(details, "; "))
	}

	normalized, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("normalize builds: %w", err)
	}

	if bytes.HasPrefix(bytes.TrimSpace(normalized), []byte("[")) {
		var builds []build.Build

		err = json.Unmarshal(normalized, &builds)
		if err != nil {
			return nil, fmt.Errorf("decode builds: %w", err)
		}

		return builds, nil
	}

	var single build.Build

	err = json.Unmarshal(normalized, &single)
	if err != nil {
		return nil, fmt.Errorf("decode build: %w", err)
	}

	return []build.Build{single}, nil
}

// ImportFiles reads every file and inserts its builds in one transaction,
// returning the number of builds stored. Any failing file rolls back the
// whole import.
func (s *Store) ImportFiles(ctx context.Context, paths []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}

	imported, err := importInto(ctx, tx, paths)
	if err != nil {
		return 0, errors.Join(err, tx.Rollback())
	}

	commitErr := tx.Commit()
	if commitErr != nil {
		return 0, fmt.Errorf("commit import: %w", commitErr)
	}

	return imported, nil
}

func importInto(ctx context.Context, tx *sql.Tx, paths []string) (int, error) {
	imported := 0

	for _, path := range paths {
		builds, err := ReadFile(path)
		if err != nil {
			return 0, err
		}

		for _, b := range builds {
			insertErr := insert(ctx, tx, b)
			if insertErr != nil {
				return 0, fmt.Errorf("%s: %w", path, insertErr)
			}

			imported++
		}
	}

	return imported, nil
}
