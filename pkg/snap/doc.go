// Package snap decides whether the files extracted from an npm snap package
// may be trusted.
//
// ValidateNpmSnap runs a fixed, fail-fast sequence of stages over an
// UnvalidatedFiles value:
//
//	completeness     manifest, package.json and bundle are present
//	manifest         snap.manifest.json matches its schema; a declared icon is shipped
//	package-json     package.json matches its schema
//	cross-reference  identity, declared paths and shasum agree with the files
//	icon             a shipped icon is a well-formed, size-bounded SVG
//	localization     locale files are valid and cover the manifest's keys exactly
//
// The first failure is returned as an *Error carrying a kind (ErrMissingArtifact,
// ErrSchemaValidation, ErrCrossReference, ErrIconValidation, ErrLocalization and
// its coverage/orphan variants, ErrCancelled) and a single-line message
// prefixed with the caller's context. On success the result is a *Files,
// which cannot be built any other way.
package snap
