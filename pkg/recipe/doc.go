// Package recipe defines the recipe manifest format and the archive package
// representation consumed by the execution engine. A recipe is a JSON
// manifest plus bundled asset files, delivered as a base64-encoded archive
// and unpacked into a directory tree before execution.
package recipe
