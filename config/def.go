package config

import (
	iface "YoloDetServer/interface"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Error reports an invalid configuration value. It is fatal at start-up.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

type EngineConfig struct {
	ModelAssetPath      string   `yaml:"modelAssetPath"`
	InputSize           int      `yaml:"inputSize"`
	ConfidenceThreshold float32  `yaml:"confidenceThreshold"`
	NmsThreshold        float32  `yaml:"nmsThreshold"`
	MaxDetections       int      `yaml:"maxDetections"`
	NumClasses          int      `yaml:"numClasses"`
	Labels              []string `yaml:"labels"`
	LabelsFile          string   `yaml:"labelsFile"`
	NumThreads          int      `yaml:"numThreads"`
	UseBackgroundWorker bool     `yaml:"useBackgroundWorker"`
	UseFp16             bool     `yaml:"useFp16"`
	InputName           string   `yaml:"inputName"`
	OutputName          string   `yaml:"outputName"`
	SharedLibraryPath   string   `yaml:"sharedLibraryPath"`
	Description         string   `yaml:"description"`
}

type Config struct {
	RPCPort       int          `yaml:"RPCPort"`
	HTTPPort      int          `yaml:"HTTPPort"`
	AdhocPort     int          `yaml:"AdhocPort"`
	UseRegServer  bool         `yaml:"UseRegServer"`
	RegServerPort int          `yaml:"RegServerPort"`
	RegServerHost string       `yaml:"RegServerHost"`
	LogLevel      string       `yaml:"logLevel"`
	Engine        EngineConfig `yaml:"engine"`
}

func DefaultEngine() EngineConfig {
	return EngineConfig{
		InputSize:           640,
		ConfidenceThreshold: 0.45,
		NmsThreshold:        0.5,
		MaxDetections:       100,
		UseBackgroundWorker: true,
		InputName:           "images",
		OutputName:          "output0",
	}
}

func Default() Config {
	return Config{
		RPCPort:   50051,
		HTTPPort:  8080,
		AdhocPort: 50052,
		LogLevel:  "info",
		Engine:    DefaultEngine(),
	}
}

// Load reads a yaml file on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	for field, port := range map[string]int{"RPCPort": c.RPCPort, "HTTPPort": c.HTTPPort, "AdhocPort": c.AdhocPort} {
		if port < 0 || port > 65535 {
			return &Error{Field: field, Reason: fmt.Sprintf("port %d out of range", port)}
		}
	}
	if c.UseRegServer && c.RegServerHost == "" {
		return &Error{Field: "RegServerHost", Reason: "required when UseRegServer is set"}
	}
	return c.Engine.Validate(true)
}

// Validate checks the engine options. requireModel is false for engines whose
// backend is supplied directly rather than loaded from disk.
func (e EngineConfig) Validate(requireModel bool) error {
	if requireModel {
		if e.ModelAssetPath == "" {
			return &Error{Field: "modelAssetPath", Reason: "missing model asset"}
		}
		if _, err := os.Stat(e.ModelAssetPath); err != nil {
			return &Error{Field: "modelAssetPath", Reason: err.Error()}
		}
	}
	return ValidateEngine(e.ToEngine())
}

// ValidateEngine checks the numeric options shared by every detector,
// whichever transport created it.
func ValidateEngine(e iface.EngineConfig) error {
	if e.InputSize <= 0 {
		return &Error{Field: "inputSize", Reason: fmt.Sprintf("must be positive, got %d", e.InputSize)}
	}
	if e.Conf < 0 || e.Conf > 1 {
		return &Error{Field: "confidenceThreshold", Reason: fmt.Sprintf("%v outside [0,1]", e.Conf)}
	}
	if e.Iou < 0 || e.Iou > 1 {
		return &Error{Field: "nmsThreshold", Reason: fmt.Sprintf("%v outside [0,1]", e.Iou)}
	}
	if e.MaxDetections <= 0 {
		return &Error{Field: "maxDetections", Reason: fmt.Sprintf("must be positive, got %d", e.MaxDetections)}
	}
	if e.NumClasses < 0 {
		return &Error{Field: "numClasses", Reason: "must not be negative"}
	}
	if e.NumThreads < 0 {
		return &Error{Field: "numThreads", Reason: "must not be negative"}
	}
	if e.Names.IsFile {
		if _, ok := e.Names.Data.(string); !ok {
			return &Error{Field: "labelsFile", Reason: fmt.Sprintf("expected a path, got %T", e.Names.Data)}
		}
	}
	return nil
}

// ToEngine converts the yaml options into the engine representation.
func (e EngineConfig) ToEngine() iface.EngineConfig {
	names := iface.NamesConf{IsFile: false, Data: e.Labels}
	if e.LabelsFile != "" {
		names = iface.NamesConf{IsFile: true, Data: e.LabelsFile}
	}
	return iface.EngineConfig{
		ModelPath:           e.ModelAssetPath,
		InputSize:           e.InputSize,
		Conf:                e.ConfidenceThreshold,
		Iou:                 e.NmsThreshold,
		MaxDetections:       e.MaxDetections,
		NumClasses:          e.NumClasses,
		Names:               names,
		NumThreads:          e.NumThreads,
		UseBackgroundWorker: e.UseBackgroundWorker,
		UseFp16:             e.UseFp16,
		InputName:           e.InputName,
		OutputName:          e.OutputName,
		Description:         e.Description,
	}
}
