// Package policy lints scene graphs with Open Policy Agent (OPA).
//
// A built scene is first reduced to a Summary: every reachable node with its
// class, operation kind, depth and fan-in/fan-out. Rego policies then read
// the summary as input.scene and report violations through a deny set.
//
// # Usage
//
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//
//	result, err := engine.Check(ctx, graph, policy.Limits{MaxDepth: 32})
//	if err != nil {
//	    return err
//	}
//
//	if !result.Allowed {
//	    for _, v := range result.Violations {
//	        fmt.Printf("%s: %s\n", v.Policy, v.Message)
//	    }
//	}
//
// # Built-in Policies
//
//  1. stray-anchor - anchors must be consumed by a module (error)
//  2. max-depth - limits the nesting depth of a scene (error)
//  3. degenerate-operation - boolean operations with too few operands (warning)
//  4. empty-group - groups without children (info)
//  5. stray-root - scenes with more than one root (warning)
//
// # Custom Policies
//
// Custom policies are loaded from .rego files, or from JSON and YAML
// documents holding a single policy or a Bundle. A Rego file may set its
// severity with a "# severity: error" comment.
//
//	package custom.policies.hull
//
//	import rego.v1
//
//	deny contains violation if {
//	    some node in input.scene.nodes
//	    node.operation == "hull"
//	    node.depth > 4
//	    violation := {
//	        "message": "hulls must stay near the top of the scene",
//	        "node": node.label,
//	    }
//	}
//
// Violations with error or critical severity make a result disallowed;
// everything else is reported as a warning.
//
// # Hot Reload
//
// Engine.Watch reloads custom policies whenever their files change.
package policy
