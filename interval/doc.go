// Package interval implements the genomic-interval algebra used by the
// candidate-detection pipeline: genome-order sorting, distance-based
// merging, symmetric slop with chromosome-boundary clipping, fixed-size
// window tiling, k-way merging of pre-sorted streams, and exclusion-set
// subtraction backed by an interval tree.
//
// It assumes every position fits in a PosType, which is currently defined
// as int32 since that's what BAM files are limited to.
package interval
