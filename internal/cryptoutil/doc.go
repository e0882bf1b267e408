// Package cryptoutil checks the integrity of content bundles pulled from
// S3: SHA-256 digests compared in constant time, and detached signatures
// verified locally against the public half of an asymmetric KMS key.
package cryptoutil
