// Package config loads the single JSON configuration document described in
// spec.md §6, following internal/conf/config.go's viper-based load/merge
// shape: defaults are seeded first, the config file is layered on top, and
// the result is unmarshaled into a typed Settings struct.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// EnvConfigPath is the environment variable that overrides the config file
// location (spec.md §6).
const EnvConfigPath = "TIRCORDER_CONFIG_PATH"

const defaultConfigName = ".tircorder_config.json"

// TranscriptionMethod enumerates the backend selection values recognised in
// spec.md §6.
type TranscriptionMethod string

const (
	MethodPythonWhisper          TranscriptionMethod = "python_whisper"
	MethodCTranslate2            TranscriptionMethod = "ctranslate2"
	MethodCTranslate2Nonpythonic TranscriptionMethod = "ctranslate2_nonpythonic"
	MethodWebUI                  TranscriptionMethod = "webui"
)

// WebUIConfig configures the remote Gradio transcription backend.
type WebUIConfig struct {
	BaseURL       string            `mapstructure:"base_url"`
	TranscribePath string           `mapstructure:"transcribe_path"`
	Options       map[string]any    `mapstructure:"options"`
	TimeoutSec    float64           `mapstructure:"timeout"`
	Username      string            `mapstructure:"username"`
	Password      string            `mapstructure:"password"`
	APIKey        string            `mapstructure:"api_key"`
	Headers       map[string]string `mapstructure:"headers"`
	VerifySSL     bool              `mapstructure:"verify_ssl"`
}

// TranscriptionConfig is the `transcription` config document section.
type TranscriptionConfig struct {
	Method            TranscriptionMethod `mapstructure:"method"`
	WebUI             WebUIConfig         `mapstructure:"webui"`
	SubprocessCommand string              `mapstructure:"subprocess_command"`
	LocalModelPath    string              `mapstructure:"local_model_path"`
}

// FolderConfig is a configured recording directory and its per-folder
// policy flags (spec.md §3 RecordingFolder).
type FolderConfig struct {
	Path               string `mapstructure:"path"`
	IgnoreTranscribing bool   `mapstructure:"ignore_transcribing"`
	IgnoreConverting   bool   `mapstructure:"ignore_converting"`
	Recursive          bool   `mapstructure:"recursive"`
}

// GovernorConfig configures the CPU monitor and rate limiters (spec.md §4.2).
type GovernorConfig struct {
	CPUThresholdPercent float64 `mapstructure:"cpu_threshold_percent"`
	CPUCheckIntervalSec float64 `mapstructure:"cpu_check_interval_seconds"`
	ScanMaxBackoffSec   float64 `mapstructure:"scan_max_backoff_seconds"`
	RemoteCallIntervalMS int    `mapstructure:"remote_call_interval_ms"`
}

// Settings is the fully resolved configuration document.
type Settings struct {
	DataDir       string               `mapstructure:"data_dir"`
	StatePath     string               `mapstructure:"state_path"`
	MediaTool     string               `mapstructure:"media_tool"`
	ScanIntervalSec int                `mapstructure:"scan_interval_seconds"`
	BatchSize     int                  `mapstructure:"batch_size"`
	Folders       []FolderConfig       `mapstructure:"folders"`
	Transcription TranscriptionConfig  `mapstructure:"transcription"`
	Governor      GovernorConfig       `mapstructure:"governor"`

	// Client-role fields, present only so the CLI surface in spec.md §6
	// is bit-exact; the local audio capture client itself is out of
	// scope (spec.md §1) and these are unused by the core pipeline.
	ServerScript string `mapstructure:"server_script"`
	DeviceID     int    `mapstructure:"device_id"`
	OutputDir    string `mapstructure:"output_dir"`
}

var (
	mu       sync.RWMutex
	instance *Settings
)

// setDefaultConfig seeds every default spec.md §6 names, mirroring
// internal/conf/defaults.go's setDefaultConfig().
func setDefaultConfig() {
	viper.SetDefault("data_dir", "")
	viper.SetDefault("state_path", "~/.tircorder_state.db")
	viper.SetDefault("media_tool", "ffmpeg")
	viper.SetDefault("scan_interval_seconds", 5)
	viper.SetDefault("batch_size", 100)

	viper.SetDefault("transcription.method", string(MethodCTranslate2))
	viper.SetDefault("transcription.webui.base_url", "http://localhost:7860")
	viper.SetDefault("transcription.webui.transcribe_path", "/_transcribe_file")
	viper.SetDefault("transcription.webui.timeout", 600.0)
	viper.SetDefault("transcription.webui.verify_ssl", true)
	viper.SetDefault("transcription.webui.options", map[string]any{})

	viper.SetDefault("governor.cpu_threshold_percent", 85.0)
	viper.SetDefault("governor.cpu_check_interval_seconds", 0.5)
	viper.SetDefault("governor.scan_max_backoff_seconds", 60.0)
	viper.SetDefault("governor.remote_call_interval_ms", 0)
}

// resolvePath returns the effective config file path: TIRCORDER_CONFIG_PATH
// if set, else ~/.tircorder_config.json.
func resolvePath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, defaultConfigName), nil
}

// Load reads the configuration document, applying the
// `resolved = DEFAULTS ⊕ config ⊕ overrides` merge rule from spec.md §4.4:
// defaults are seeded first, then the JSON file (if present) is layered on
// top, then caller-supplied overrides are applied last.
func Load(overrides map[string]any) (*Settings, error) {
	mu.Lock()
	defer mu.Unlock()

	v := viper.New()
	viper.Reset()
	setDefaultConfig()

	path, err := resolvePath()
	if err != nil {
		return nil, err
	}

	v.SetConfigType("json")
	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		for _, key := range v.AllKeys() {
			viper.Set(key, v.Get(key))
		}
	}

	for key, value := range overrides {
		viper.Set(key, value)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	instance = settings
	return settings, nil
}

// Current returns the most recently loaded Settings, or nil if Load has not
// run yet.
func Current() *Settings {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}
