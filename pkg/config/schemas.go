package config

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	return newSchemaRegistry(cuecontext.New())
}

// newSchemaRegistry builds a registry on ctx. Values from one context can only
// be unified with values from the same context.
func newSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	if err := sr.registerBuiltInSchemas(); err != nil {
		panic(err)
	}

	return sr
}

// builtinDefinitions maps registry names to definitions of ConfigSchema.
var builtinDefinitions = map[string]string{
	"config":    "#Config",
	"script":    "#Script",
	"lint":      "#Lint",
	"output":    "#Output",
	"watch":     "#Watch",
	"log":       "#Log",
	"telemetry": "#Telemetry",
	"history":   "#History",
}

// registerBuiltInSchemas compiles ConfigSchema and registers each definition.
func (sr *SchemaRegistry) registerBuiltInSchemas() error {
	root := sr.ctx.CompileString(ConfigSchema, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return fmt.Errorf("failed to compile built-in schema: %w", err)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	for name, def := range builtinDefinitions {
		val := root.LookupPath(cue.ParsePath(def))
		if err := val.Err(); err != nil {
			return fmt.Errorf("built-in schema %s: %w", name, err)
		}
		sr.schemas[name] = val
	}
	return nil
}

// RegisterSchema compiles schema and registers it under name. When schema
// holds a single definition, that definition is registered.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	iter, err := val.Fields(cue.Definitions(true))
	if err == nil {
		var defs []cue.Value
		for iter.Next() {
			if iter.Selector().IsDefinition() {
				defs = append(defs, iter.Value())
			}
		}
		if len(defs) == 1 {
			val = defs[0]
		}
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	dataVal := sr.ctx.CompileBytes(raw)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names in order.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigSchema is the CUE schema of a configuration file. Every field has a
// default, so an empty file is a valid configuration.
const ConfigSchema = `
#Duration: =~"^([0-9]+(ns|us|ms|s|m|h))+$"

#Script: {
	// Timeout bounds a single script run
	timeout: #Duration | *"30s"
}

#Lint: {
	// MaxDepth is the deepest allowed root-to-leaf path, 0 disables the check
	max_depth: int & >=0 | *64

	// Policies lists additional .rego, .json or .yaml policy sources
	policies: [...string] | *[]

	// Disabled lists policies to skip
	disabled: [...string] | *[]

	fail_on_warning: bool | *false
}

#Output: {
	format: "tree" | "dot" | "json" | *"tree"
}

#Watch: {
	debounce: #Duration | *"500ms"
}

#Log: {
	level:  "trace" | "debug" | "info" | "warn" | "error" | *"info"
	format: "console" | "json" | *"console"
}

#Telemetry: {
	metrics:         bool | *false
	metrics_address: string | *":9464"
	tracing:         "none" | "stdout" | "otlp" | *"none"
	endpoint?:       string
	sample_rate: number & >=0 & <=1 | *1.0
}

#History: {
	// Path of the SQLite run history, empty disables recording
	path: string | *""

	// Keep is the number of runs kept per script, 0 keeps everything
	keep: int & >=0 | *100
}

#Config: {
	script:    #Script
	lint:      #Lint
	output:    #Output
	watch:     #Watch
	log:       #Log
	telemetry: #Telemetry
	history:   #History
}
`
