package sources

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"taskflow/internal/taskio"
)

// ── YAML File Source ────────────────────────────────────────
// Reads task records from a local YAML file containing a list of maps.
// Also accepts a top-level map with a single list value, which covers
// the common "tasks:" wrapper that hand-written files tend to use.

type yamlFileSource struct{}

func init() { taskio.RegisterSource(&yamlFileSource{}) }

func (s *yamlFileSource) Spec() taskio.SourceSpec {
	return taskio.SourceSpec{
		Type:  "yaml_file",
		Label: "YAML File",
		Icon:  "IconFileTypeXml",
		ConfigFields: []taskio.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Absolute path to the YAML file"},
			{Key: "listKey", Label: "List Key", Type: "string", Required: false, Help: "Top-level key holding the list (e.g., 'tasks'). Leave empty if root is a list."},
		},
	}
}

func (s *yamlFileSource) Discover(ctx context.Context, cfg taskio.SourceConfig) (*taskio.Schema, error) {
	records, err := readYAMLFile(cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(records), nil
}

func (s *yamlFileSource) Read(ctx context.Context, cfg taskio.SourceConfig) (<-chan taskio.Record, <-chan error) {
	out := make(chan taskio.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		records, err := readYAMLFile(cfg)
		if err != nil {
			errCh <- err
			return
		}
		for _, rec := range records {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

func readYAMLFile(cfg taskio.SourceConfig) ([]taskio.Record, error) {
	filePath, _ := cfg["filePath"].(string)
	if filePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if listKey, ok := cfg["listKey"].(string); ok && listKey != "" {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("listKey set but document root is not a map")
		}
		raw = m[listKey]
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("yaml document is not a list of records")
	}

	records := make([]taskio.Record, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, taskio.Record{Data: flattenMap(normalizeYAML(m))})
	}
	return records, nil
}

// normalizeYAML converts yaml.v3 scalar types to their JSON equivalents
// so downstream transforms see the same shapes as other sources.
func normalizeYAML(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		default:
			out[k] = v
		}
	}
	return out
}
