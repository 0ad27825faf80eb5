// Package workflow implements the orchestration engine: loading a node list,
// running it against a handler registry, recursing into sub-workflows with
// isolated scope, and delivering the responder's output either as a complete
// string or as a filtered token stream.
//
// Execution of a single request is sequential: nodes run one after another,
// never in parallel. Independent requests run concurrently and share no
// mutable state except the lock store.
package workflow
