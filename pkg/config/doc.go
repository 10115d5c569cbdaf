// Package config loads the configuration of the solid command line tool.
//
// Configuration files may be written in CUE, YAML or JSON. Every source is
// unified with the #Config schema (see ConfigSchema), which supplies the
// defaults and rejects unknown fields, and the decoded result is checked
// once more with struct tag validation.
//
// # Usage
//
//	parser := config.NewParser()
//	cfg, err := parser.Load("solid.cue")
//	if err != nil {
//	    var loadErr *config.LoadError
//	    if errors.As(err, &loadErr) {
//	        for _, e := range loadErr.Errors {
//	            fmt.Println(e)
//	        }
//	    }
//	    return err
//	}
//
// Several files can be given; CUE unification merges them and reports
// conflicting values as errors:
//
//	cfg, err := parser.Load("base.cue", "ci.yaml")
//
// # Example
//
//	script: timeout: "10s"
//
//	lint: {
//	    max_depth: 32
//	    policies: ["./policies"]
//	    disabled: ["stray-root"]
//	}
//
//	output: format: "dot"
//
//	telemetry: {
//	    tracing:  "otlp"
//	    endpoint: "localhost:4317"
//	}
package config
