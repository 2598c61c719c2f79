package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROTRECON_"

// SchemaError reports a document that does not satisfy the schema.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

var validate = validator.New()

// Load reads the YAML file at path over Defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse checks data against the schema and decodes it over Defaults.
func Parse(data []byte) (*Config, error) {
	if err := checkSchema(data); err != nil {
		return nil, err
	}

	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// checkSchema unifies the raw document with #Config.
func checkSchema(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if len(doc) == 0 {
		return nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return schemaError(err)
	}
	return nil
}

// schemaError keeps the first CUE error with its path.
func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	return &SchemaError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
}

// ApplyEnv overrides fields from PROTRECON_* variables. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"STORE_PATH":                 &c.Store.Path,
		"REGISTRY_BASE_URL":          &c.Registry.BaseURL,
		"RECONCILE_CANONICAL_POLICY": &c.Reconcile.CanonicalPolicy,
		"LOG_LEVEL":                  &c.Log.Level,
		"LOG_FILE":                   &c.Log.File,
		"METRICS_ADDR":               &c.Metrics.Addr,
	}
	ints := map[string]*int{
		"REGISTRY_MAX_ATTEMPTS":         &c.Registry.MaxAttempts,
		"REGISTRY_CACHE_SIZE":           &c.Registry.CacheSize,
		"REGISTRY_BREAKER_FAILURES":     &c.Registry.BreakerFailures,
		"RECONCILE_BATCH_SIZE":          &c.Reconcile.BatchSize,
		"RECONCILE_RESOLVE_CONCURRENCY": &c.Reconcile.ResolveConcurrency,
	}
	durations := map[string]*time.Duration{
		"REGISTRY_RETRY_INTERVAL":  &c.Registry.RetryInterval,
		"REGISTRY_TIMEOUT":         &c.Registry.Timeout,
		"REGISTRY_BREAKER_TIMEOUT": &c.Registry.BreakerTimeout,
	}
	bools := map[string]*bool{
		"RECONCILE_AUTO_FIX_DEAD_ACCESSIONS":   &c.Reconcile.AutoFixDeadAccessions,
		"RECONCILE_CREATE_MISSING_TRANSCRIPTS": &c.Reconcile.CreateMissingTranscripts,
		"RECONCILE_BLOCK_REPAIR_ON_SEVERE":     &c.Reconcile.BlockRepairOnSevere,
	}

	for key, dst := range strs {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	for key, dst := range ints {
		if v := getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	for key, dst := range durations {
		if v := getenv(EnvPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}
	for key, dst := range bools {
		if v := getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}
	if v := getenv(EnvPrefix + "RECONCILE_CONSERVATION_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRECONCILE_CONSERVATION_THRESHOLD: %w", EnvPrefix, err)
		}
		c.Reconcile.ConservationThreshold = f
	}
	return nil
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(e.Namespace(), "Config."))
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
