// Package scrub implements the per-object transform pipeline of the
// migration: partitioning remote keys into databases, removing target
// identifiers from CSV files and from ZIP bundles described by an embedded
// manifest, accumulating detections in a run-wide ledger, and driving the
// whole run object by object so that a failure on one object never corrupts
// the run or any other object.
package scrub
