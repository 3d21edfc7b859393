// Package manifest holds the documents shipped in a snap package
// (snap.manifest.json, package.json and locale files) and the Schema that
// validates their raw bytes.
package manifest
