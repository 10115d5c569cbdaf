// Package transform composes coordinate transforms along scene graph paths.
//
// Transform nodes carry a *Node payload with a local Affine transform; an
// Untransform node resets the frame so that everything below it is placed
// relative to the origin. Visitor accumulates the absolute transform during
// a descendant traversal and Collector builds on it to gather classified
// nodes such as layers. Placements answers the reverse question: under how
// many distinct absolute transforms does one node appear in the scene.
package transform
