// Package config defines the format-agnostic pipeline model and the Loader
// seam that format-specific parsers (HCL, YAML) implement.
package config
