// Package workspace owns the on-disk layout every stage reads and writes.
//
// Resolve turns configuration into absolute paths, Prepare guarantees empty
// output directories before a run, Clear reclaims everything, and StageInputs
// copies user-supplied pages and character references into place. Vars is the
// placeholder table stage definitions are expanded against.
package workspace
