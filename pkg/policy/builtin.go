package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		strayAnchorPolicy(),
		maxDepthPolicy(),
		degenerateOperationPolicy(),
		emptyGroupPolicy(),
		strayRootPolicy(),
	}
}

// strayAnchorPolicy rejects anchors that were never bound by a module.
func strayAnchorPolicy() Policy {
	return Policy{
		Name:        "stray-anchor",
		Description: "Anchors are only attachment markers and must be consumed by a module",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"modules", "structure"},
		Rego: `package solidgraph.policies.anchors

import rego.v1

# Anchors must not survive outside a module definition
deny contains violation if {
	some node in input.scene.nodes
	node.class == "anchor"
	violation := {
		"message": sprintf("anchor %s is not bound to a module", [node.label]),
		"node": node.label,
	}
}
`,
	}
}

// maxDepthPolicy limits how deeply a scene may nest.
func maxDepthPolicy() Policy {
	return Policy{
		Name:        "max-depth",
		Description: "Limits the longest root-to-leaf path of a scene",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"limits", "structure"},
		Rego: `package solidgraph.policies.depth

import rego.v1

deny contains violation if {
	input.limits.max_depth > 0
	input.scene.max_depth > input.limits.max_depth
	violation := {
		"message": sprintf("scene nests %d levels deep, limit is %d", [input.scene.max_depth, input.limits.max_depth]),
	}
}
`,
	}
}

// degenerateOperationPolicy flags boolean operations with too few operands.
func degenerateOperationPolicy() Policy {
	return Policy{
		Name:        "degenerate-operation",
		Description: "Boolean operations need at least two operands to have an effect",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"operations"},
		Rego: `package solidgraph.policies.operations

import rego.v1

binary := {"difference", "intersection", "minkowski"}

deny contains violation if {
	some node in input.scene.nodes
	node.operation in binary
	node.children < 2
	violation := {
		"message": sprintf("%s has %d operand(s)", [node.operation, node.children]),
		"node": node.label,
	}
}

deny contains violation if {
	some node in input.scene.nodes
	node.operation == "hull"
	node.children == 0
	violation := {
		"message": "hull has no operands",
		"node": node.label,
	}
}
`,
	}
}

// emptyGroupPolicy flags groups that contribute nothing to the scene.
func emptyGroupPolicy() Policy {
	return Policy{
		Name:        "empty-group",
		Description: "Groups without children contribute nothing",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"structure"},
		Rego: `package solidgraph.policies.groups

import rego.v1

deny contains violation if {
	some node in input.scene.nodes
	node.class == "group"
	node.children == 0
	violation := {
		"message": sprintf("group #%d is empty", [node.id]),
		"node": node.label,
	}
}
`,
	}
}

// strayRootPolicy warns when a scene has more than one root, which usually
// means a node was created outside the intended scope.
func strayRootPolicy() Policy {
	return Policy{
		Name:        "stray-root",
		Description: "A scene is expected to hang below a single root",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"structure", "scopes"},
		Rego: `package solidgraph.policies.roots

import rego.v1

deny contains violation if {
	count(input.scene.roots) > 1
	violation := {
		"message": sprintf("scene has %d roots", [count(input.scene.roots)]),
	}
}
`,
	}
}
