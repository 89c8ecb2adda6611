// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Extensions lists the configuration file formats, in lookup order.
var Extensions = []string{".json", ".toml", ".yaml"}

// LoadConfigFile will attempt to load json|toml|yaml configuration files.
// `base` is the full path and base name of the configuration file to load.
// `target` is an interface in to which the data will be loaded. Checks for
// '<base>.json', '<base>.toml', and '<base>.yaml', the first one found wins.
// When none exist the returned error matches os.ErrNotExist.
func LoadConfigFile(base string, target interface{}) error {
	if base == "" {
		return errors.Errorf("invalid config file (empty)")
	}

	for _, ext := range Extensions {
		cfg := base + ext
		data, err := os.ReadFile(cfg)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "reading configuration file (%s)", cfg)
		}

		if err := unmarshal(ext, data, target); err != nil {
			return errors.Wrapf(err, "parsing configuration file (%s)", cfg)
		}

		return nil
	}

	return fmt.Errorf("no config found matching (%s%s): %w", base, strings.Join(Extensions, "|"), os.ErrNotExist)
}

// LoadConfigMap loads '<base>.(json|toml|yaml)' as a generic map. Nested
// maps are normalized to map[string]interface{} whatever the format.
func LoadConfigMap(base string) (map[string]interface{}, error) {
	if base == "" {
		return nil, errors.Errorf("invalid config file (empty)")
	}

	for _, ext := range Extensions {
		cfg := base + ext
		data, err := os.ReadFile(cfg)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "reading configuration file (%s)", cfg)
		}

		var raw map[string]interface{}
		switch ext {
		case ".toml":
			tree, terr := toml.LoadBytes(data)
			if terr != nil {
				return nil, errors.Wrapf(terr, "parsing configuration file (%s)", cfg)
			}
			raw = tree.ToMap()
		default:
			if err := unmarshal(ext, data, &raw); err != nil {
				return nil, errors.Wrapf(err, "parsing configuration file (%s)", cfg)
			}
		}

		if raw == nil {
			raw = map[string]interface{}{}
		}

		return normalizeMap(raw), nil
	}

	return nil, fmt.Errorf("no config found matching (%s%s): %w", base, strings.Join(Extensions, "|"), os.ErrNotExist)
}

// ConfigBases lists the distinct base names (path without extension) of the
// configuration files found in dir, sorted.
func ConfigBases(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration directory (%s)", dir)
	}

	seen := make(map[string]bool)
	bases := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		known := false
		for _, e := range Extensions {
			if ext == e {
				known = true
				break
			}
		}
		if !known {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ext)
		if seen[base] {
			continue
		}
		seen[base] = true
		bases = append(bases, base)
	}

	sort.Strings(bases)

	return bases, nil
}

func unmarshal(ext string, data []byte, target interface{}) error {
	switch ext {
	case ".json":
		return json.Unmarshal(data, target)
	case ".toml":
		return toml.Unmarshal(data, target)
	case ".yaml":
		return yaml.Unmarshal(data, target)
	}
	return errors.Errorf("unsupported config format (%s)", ext)
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeValue(val)
		}
		return m
	case map[string]interface{}:
		return normalizeMap(t)
	case []interface{}:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	case []map[string]interface{}:
		l := make([]interface{}, len(t))
		for i := range t {
			l[i] = normalizeMap(t[i])
		}
		return l
	}
	return v
}
