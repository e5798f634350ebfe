// Package personaflow routes a user query through a named persona: a
// fixed sequence of inference stages culminating in a domain-specific
// output. Stages declare strict input/output field contracts and run in
// one of three modes (predict, reason-then-predict, reactive tool loop).
// Pipelines validate field flow at construction time, so a wiring mistake
// is a configuration error, never a runtime surprise.
//
// The workflow subpackage wraps a pipeline invocation with the security
// gate, retry policy, run timeout, and batch/periodic execution.
package personaflow
