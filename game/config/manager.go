package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/game/service"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrInvalidName    = errors.New("invalid configuration name")
)

// DefaultConfigID is the preset used when a session names none
const DefaultConfigID = "classic"

var configNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Manager handles rule-set preset loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.Preset
	configs       map[string]*engine.Preset
	mu            sync.RWMutex
}

// NewManager creates a new preset manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.Preset),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// LoadConfig loads a preset by name. Callers get their own copy.
func (m *Manager) LoadConfig(name string) (*engine.Preset, error) {
	name = strings.TrimSuffix(name, ".json")
	if !configNamePattern.MatchString(name) {
		return nil, ErrConfigNotFound
	}

	m.mu.RLock()
	if preset, exists := m.configs[name]; exists {
		m.mu.RUnlock()
		return clonePreset(preset), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if preset, exists := m.configs[name]; exists {
		return clonePreset(preset), nil
	}

	data, err := os.ReadFile(filepath.Join(m.configDir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var preset engine.Preset
	if err := json.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}
	if err := engine.ValidatePreset(&preset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m.configs[name] = &preset
	return clonePreset(&preset), nil
}

// ListConfigs returns information about all valid presets, sorted by id
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		preset, err := m.LoadConfig(name)
		if err != nil {
			// Skip invalid presets
			continue
		}

		configs = append(configs, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    name,
			Name:        preset.Name,
			Description: preset.Description,
			MinPlayers:  preset.Settings.MinPlayers,
			MaxPlayers:  preset.Settings.MaxPlayers,
			NumDecks:    preset.Settings.NumDecks,
			SlapRules:   len(preset.Settings.SlapRules),
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns a copy of the default preset
func (m *Manager) GetDefault() *engine.Preset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clonePreset(m.defaultConfig)
}

// loadDefaultConfig picks classic.json, else the first valid preset, else the built-in rules
func (m *Manager) loadDefaultConfig() error {
	preset, err := m.LoadConfig(DefaultConfigID)
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			preset = builtinPreset()
		} else if preset, err = m.LoadConfig(configs[0].ConfigID); err != nil {
			preset = builtinPreset()
		}
	}

	m.mu.Lock()
	m.defaultConfig = preset
	m.mu.Unlock()
	return nil
}

// SaveConfig validates a preset and writes it to disk
func (m *Manager) SaveConfig(name string, preset *engine.Preset) error {
	name = strings.TrimSuffix(name, ".json")
	if !configNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if preset == nil {
		return fmt.Errorf("%w: preset is required", ErrInvalidConfig)
	}
	if err := engine.ValidatePreset(preset); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	data, err := json.MarshalIndent(preset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.configDir, name+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[name] = clonePreset(preset)
	m.mu.Unlock()

	return nil
}

func builtinPreset() *engine.Preset {
	return &engine.Preset{
		Name:        "default",
		Description: "Built-in classic rules",
		Settings:    engine.DefaultSettings(),
	}
}

func clonePreset(p *engine.Preset) *engine.Preset {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Settings = p.Settings.Clone()
	return &cp
}
