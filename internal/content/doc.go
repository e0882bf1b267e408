// Package content owns the docs bundle the site serves.
//
// A bundle is a tar.gz holding meta.json, team.json, provenance.json, the
// MDX content modules and the site chrome. Release tooling uploads it to
// S3 under its SHA-256 and publishes that hash in an SSM parameter. The
// [Loader] fetches, verifies and unpacks a bundle into a [Snapshot], the
// [Watcher] polls the parameter and swaps new bundles in, and the
// [Manager] hands the active snapshot to request handlers without locks.
package content
