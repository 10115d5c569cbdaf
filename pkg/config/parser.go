package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are the file names Discover looks for, in order.
var DefaultFiles = []string{"solid.cue", "solid.yaml", "solid.yml", "solid.json"}

// Parser reads configuration files, unifies them with the #Config schema
// and validates the result.
type Parser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	ctx := cuecontext.New()
	return &Parser{
		ctx:            ctx,
		schemaRegistry: newSchemaRegistry(ctx),
		validator:      validator.New(),
	}
}

// Load parses and unifies the given files. CUE, YAML and JSON sources can be
// mixed; later files refine earlier ones and conflicting values are errors.
// With no files, Load returns the defaults.
func (p *Parser) Load(paths ...string) (*Config, error) {
	values := make([]cue.Value, 0, len(paths))
	var loadErrors []ValidationError

	for _, path := range paths {
		val, errs := p.loadFile(path)
		if len(errs) > 0 {
			loadErrors = append(loadErrors, errs...)
			continue
		}
		values = append(values, val)
	}

	if len(loadErrors) > 0 {
		return nil, &LoadError{Errors: loadErrors}
	}

	return p.resolve(values...)
}

// ParseInline parses CUE (or JSON) content held in memory.
func (p *Parser) ParseInline(content string) (*Config, error) {
	val := p.ctx.CompileString(content, cue.Filename("inline"))
	if err := val.Err(); err != nil {
		return nil, &LoadError{Errors: p.convertCUEErrors(err)}
	}
	return p.resolve(val)
}

// Discover returns the first default configuration file found in dir.
func Discover(dir string) (string, bool) {
	for _, name := range DefaultFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// loadFile loads a single configuration file as a CUE value.
func (p *Parser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:    path,
			Message: fmt.Sprintf("failed to read file: %v", err),
		}}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var data map[string]interface{}
		if err := yaml.Unmarshal(content, &data); err != nil {
			return cue.Value{}, []ValidationError{{
				File:    path,
				Message: fmt.Sprintf("failed to parse YAML: %v", err),
			}}
		}
		if data == nil {
			data = map[string]interface{}{}
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return cue.Value{}, []ValidationError{{File: path, Message: err.Error()}}
		}
		content = raw
	case ".cue", ".json":
	default:
		return cue.Value{}, []ValidationError{{
			File:    path,
			Message: "unsupported configuration format",
		}}
	}

	val := p.ctx.CompileBytes(content, cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, p.convertCUEErrors(err)
	}

	return val, nil
}

// resolve unifies values with the #Config schema, fills in defaults and
// decodes the result.
func (p *Parser) resolve(values ...cue.Value) (*Config, error) {
	unified, ok := p.schemaRegistry.GetSchema("config")
	if !ok {
		return nil, errors.New("config schema not registered")
	}

	for _, v := range values {
		unified = unified.Unify(v)
	}

	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Errors: p.convertCUEErrors(err)}
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, &LoadError{Errors: p.convertCUEErrors(err)}
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := p.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct constraints. It is used for
// configurations built in code as well as for loaded ones.
func (p *Parser) Validate(cfg *Config) error {
	err := p.validator.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := make([]ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, ValidationError{
			Path:    fieldPath(fe.Namespace()),
			Message: fmt.Sprintf("failed on %q constraint", fe.Tag()),
		})
	}
	return &LoadError{Errors: out}
}

// fieldPath turns a validator namespace such as "Config.Lint.MaxDepth" into
// a lower-cased dotted path without the root type name.
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (p *Parser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: cueerrors.Details(e, nil),
		}

		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ve)
	}

	return validationErrors
}

// Schemas returns the schema registry.
func (p *Parser) Schemas() *SchemaRegistry {
	return p.schemaRegistry
}
