// Package staging manages the on-disk layout of export units.
//
// Each unit lives at <base>/<directory> with metadata/ and objects/
// subdirectories. Once packaged, the tree is replaced by <directory>.zip and,
// for backends that need it, a <directory>.sums checksum sidecar.
package staging
