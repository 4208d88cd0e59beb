// Package config loads readmeplay settings from a YAML file and validates
// them against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full set of session settings.
//
// Durations are written in YAML as Go duration strings ("10s", "250ms").
type Config struct {
	Endpoint       string        `yaml:"endpoint" json:"endpoint"`
	Proxy          string        `yaml:"proxy" json:"proxy"`
	Keepalive      time.Duration `yaml:"keepalive" json:"keepalive"`
	TickInterval   time.Duration `yaml:"tick_interval" json:"tick_interval"`
	ReadyTimeout   time.Duration `yaml:"ready_timeout" json:"ready_timeout"`
	ReadyPoll      time.Duration `yaml:"ready_poll" json:"ready_poll"`
	Refs           []string      `yaml:"refs" json:"refs"`
	Journal        string        `yaml:"journal" json:"journal"`
	AutoExecute    bool          `yaml:"auto_execute" json:"auto_execute"`
	AutoScroll     bool          `yaml:"auto_scroll" json:"auto_scroll"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`
	LogFile        string        `yaml:"log_file" json:"log_file"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Endpoint:       "ws://localhost:9182",
		Keepalive:      10 * time.Second,
		TickInterval:   250 * time.Millisecond,
		ReadyTimeout:   10 * time.Second,
		ReadyPoll:      100 * time.Millisecond,
		Refs:           []string{"main", "master"},
		AutoExecute:    true,
		AutoScroll:     true,
		ViewportHeight: 20,
	}
}

// Load reads path over the defaults and validates the result. An empty
// path validates and returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	return nil
}

// Marshal renders cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf.Bytes(), nil
}
