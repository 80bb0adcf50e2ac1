// Package candidates implements the signal-aggregation and
// candidate-consolidation stages of the pipeline: coverage annotation via
// weighted-overlap joins, threshold filtering of gap events, consolidation
// of filtered candidates with hardstop bins and assembly windows, and
// identification of inaccessible (persistently low-support) regions.
package candidates
