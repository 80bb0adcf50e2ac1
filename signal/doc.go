// Package signal extracts per-batch structural-variant signals from aligned
// reads: gap events (insertions/deletions condensed from per-read CIGARs),
// hardstop breakpoints (long clipped read ends, counted into fixed-size
// bins), and coverage-by-bin.  It also defines the tab-separated wire
// formats those signal streams use between pipeline stages.
package signal
