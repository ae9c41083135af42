// Package cryptoutil hashes resource content for HTTP validators.
//
// ETags are strong validators derived from the SHA-256 of the served bytes,
// so a reload that leaves content unchanged keeps the same tag. Tag
// comparison is constant-time.
package cryptoutil
