// Package script runs scene scripts written in Starlark.
//
// A script builds a scene through builtins that mirror the construction API
// of package dag. Every node is created in the innermost open scope, and
// scope() opens one for the duration of a callback. `a * b` attaches b under
// the open fronts of a:
//
//	base = node("base")
//
//	def body():
//	    scope(translate(0, 0, 10), lambda: leaf("cube"))
//	    difference(leaf("plate"), leaf("hole"))
//
//	scope(base, body)
//
//	def _bracket():
//	    leaf("plate")
//	    scope(node("arm"), anchor)
//
//	bracket = module(_bracket)
//	assembly = base * bracket() * leaf("bolt")
//
// Since constructors attach to the open scope, chains built with `*` are
// usually written outside of scope callbacks.
//
// Public globals holding nodes are exported in Scene.Exports.
//
// # Builtins
//
// Construction: node, leaf, group, anchor, layer, attach, scope, module,
// unlink, emplace, wrap, activate, tree. Operations: union, difference,
// intersection, hull, minkowski. Transforms: translate, scale, rotate,
// mirror, matrix, untransform; every transform except untransform takes a
// when= argument and yields a plain group when it is false.
package script
