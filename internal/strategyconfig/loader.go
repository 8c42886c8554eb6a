package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/jhquant/internal/strategy"
)

// Load reads YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, data, nil
}

// Parse decodes and validates a strategy file. An empty document is a valid empty Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	for name, params := range cfg.Strategies {
		for k, v := range params {
			params[k] = stringKeys(v)
		}
		cfg.Strategies[name] = params
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// stringKeys rewrites yaml's map[interface{}]interface{} (e.g. {0.5: 40}) into
// JSON-encodable maps, recursively
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}

// Overrides returns the per-strategy parameter overrides of cfg (nil-safe)
func (c *Config) Overrides() strategy.Overrides {
	out := make(strategy.Overrides)
	if c == nil {
		return out
	}
	for name, params := range c.Strategies {
		copied := make(map[string]any, len(params))
		for k, v := range params {
			copied[k] = v
		}
		out[name] = copied
	}
	return out
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: encoding/json은 map 키를 정렬하므로 해시가 재현 가능
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewRunSnapshot creates a snapshot for the run log
func NewRunSnapshot(cfg *Config, yamlData []byte, runID string) (*RunSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &RunSnapshot{
		RunID:      runID,
		ConfigHash: hash,
		ConfigYAML: string(yamlData),
		CreatedAt:  time.Now(),
	}, nil
}
