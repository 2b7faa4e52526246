// Package supervise provides primitives for supervising background
// tasks: spawning units of work with observable terminal outcomes,
// cancelling one or many of them deterministically, and guaranteeing
// that everything a supervisor owns has finished before its scope ends.
package supervise
