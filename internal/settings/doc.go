// Package settings models the deployment settings of a Simple Machines Forum
// installation. It reads the declared values from a Settings.php, YAML or
// TOML artifact, applies environment overrides, and resolves the forum root,
// sources and cache directories against the filesystem. The resolved value is
// built once at startup and passed by value to its consumers.
package settings
