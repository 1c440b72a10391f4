// Package config loads the pipeline configuration from a TOML file, fills
// blanks from the environment, and writes provisioned identifiers back.
//
// Lookup order for the file: the explicit path, ./avatarpipe.toml, then
// ~/.config/avatarpipe/config.toml. A missing file yields defaults.
package config
