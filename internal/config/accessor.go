package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// tree renders cfg as the generic map form of its JSON encoding, which is
// what the dotted paths of `config get|set|list` address.
func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func lookup(m map[string]any, path string) (any, error) {
	var current any = m
	for _, key := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("unknown config key %q", path)
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("%s: index %q out of range", path, key)
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("%s: %q is not a section", path, key)
		}
	}
	return current, nil
}

// GetByPath returns the value at a dotted path such as "gmail.query" or
// "general.failoverChain.0".
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := tree(cfg)
	if err != nil {
		return nil, err
	}
	return lookup(m, path)
}

// SetByPath assigns raw to the setting at path. raw is converted to the type
// of the current value; comma-separated text fills list settings. New keys
// are only accepted inside map sections (providers.<name>.*). Callers
// Validate before saving.
func SetByPath(cfg *Config, path string, raw string) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	m, err := tree(cfg)
	if err != nil {
		return err
	}

	keys := strings.Split(path, ".")
	section := m
	for i, key := range keys[:len(keys)-1] {
		next, ok := section[key]
		if !ok {
			if i == 0 || keys[i-1] != "providers" {
				return fmt.Errorf("unknown config section %q", strings.Join(keys[:i+1], "."))
			}
			next = map[string]any{}
			section[key] = next
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: %q is not a section", path, key)
		}
		section = child
	}

	leaf := keys[len(keys)-1]
	current, exists := section[leaf]
	if !exists {
		like, ok := omittedFieldKind(keys)
		if !ok {
			return fmt.Errorf("unknown config key %q", path)
		}
		current = like
	}
	val, err := convert(raw, current)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	section[leaf] = val

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var updated Config
	if err := json.Unmarshal(data, &updated); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*cfg = updated
	return nil
}

// omitted holds a value of the JSON kind of every field that may be absent
// from the encoded config (omitempty fields, fields of new providers).
var omitted = map[string]any{
	"general.logFile":       "",
	"general.failoverChain": []any{},
	"triage.promptsFile":    "",
	"metrics.outputFile":    "",
}

var providerFields = map[string]any{
	"enabled":        false,
	"apiBase":        "",
	"apiKey":         "",
	"defaultModel":   "",
	"timeoutSeconds": float64(0),
}

func omittedFieldKind(keys []string) (any, bool) {
	if len(keys) == 3 && keys[0] == "providers" {
		like, ok := providerFields[keys[2]]
		return like, ok
	}
	like, ok := omitted[strings.Join(keys, ".")]
	return like, ok
}

// convert parses raw into the JSON kind of like.
func convert(raw string, like any) (any, error) {
	switch like.(type) {
	case string:
		return raw, nil
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", raw)
		}
		return b, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", raw)
		}
		return f, nil
	case []any:
		return splitList(raw), nil
	default:
		return nil, fmt.Errorf("cannot set a %T from the command line", like)
	}
}

func splitList(raw string) []any {
	out := []any{}
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Sanitize returns a copy of cfg with provider API keys masked. ${VAR}
// references are shown as written.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Providers = make(map[string]ProviderConfig, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		if pc.APIKey != "" && !envVarPattern.MatchString(pc.APIKey) {
			pc.APIKey = maskSecret(pc.APIKey)
		}
		out.Providers[name] = pc
	}
	out.General.FailoverChain = append([]string(nil), cfg.General.FailoverChain...)
	return &out
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ListPaths flattens cfg into dotted paths and their values.
func ListPaths(cfg *Config) map[string]any {
	m, err := tree(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		section, ok := v.(map[string]any)
		if !ok {
			out[prefix] = v
			return
		}
		for k, child := range section {
			if prefix != "" {
				k = prefix + "." + k
			}
			walk(k, child)
		}
	}
	walk("", m)
	return out
}
