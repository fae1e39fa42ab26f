// Package config defines deployment settings and provides helpers to load,
// validate and save them in YAML format.
//
// Config carries the instance alias table, the backup root holding dated
// package folders, the package catalog, and the timing of uploads, publication
// and status polling.
package config
