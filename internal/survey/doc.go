// Package survey turns raw brand-tracking survey responses into
// validated, analysis-ready variables.
//
// The Recoder applies per-field scale definitions: sentinel codes
// become explicit missing values, out-of-range numerics are clamped and
// flagged, categorical codes map to labels, and derived bucket fields
// are computed from already-recoded values so missing handling happens
// exactly once. The CompositeBuilder averages declared item sets with a
// minimum-present guard, and CronbachAlpha reports whether each
// grouping is internally consistent.
package survey
