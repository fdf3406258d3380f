// Package file provides the TOML configuration store kept at
// ~/.viewshot/config.toml.
package file
