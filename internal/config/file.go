package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// mergedEnvironment returns the variables from the YAML file at path, overridden by
// the process environment. The file is a flat mapping of variable names to values;
// sequences are joined with commas.
func mergedEnvironment(path string) (map[string]string, error) {
	merged := map[string]string{}

	if strings.TrimSpace(path) != "" {
		fileValues, err := readYAMLFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileValues {
			merged[k] = v
		}
	}

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		merged[key] = value
	}
	return merged, nil
}

func readYAMLFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return parseYAML(raw)
}

func parseYAML(raw []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	values := make(map[string]string, len(doc))
	for key, value := range doc {
		name := strings.ToUpper(strings.TrimSpace(key))
		switch typed := value.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(typed))
			for _, item := range typed {
				parts = append(parts, fmt.Sprint(item))
			}
			values[name] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("config key %s: nested mappings are not supported", key)
		default:
			values[name] = fmt.Sprint(typed)
		}
	}
	return values, nil
}
