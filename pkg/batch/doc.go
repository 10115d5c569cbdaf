// Package batch runs independent jobs, such as linting several scene
// scripts, on a bounded pool of workers and reports their results in input
// order.
package batch
