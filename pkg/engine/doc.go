// Package engine provides the core of the recipe execution engine: the
// step-sequencing orchestrators, the per-asset-type installer contract, the
// old-to-new identifier registry, and the hierarchical feedback sink.
package engine
