// Package config loads engine configuration and workflow definitions.
//
// Engine configuration is one YAML file with environment-variable overrides
// for deployment-specific values. Workflow definitions live as individual
// YAML files in a directory, loaded lazily by name and cached; a polling
// watcher invalidates cached definitions when their files change, so edits
// take effect without a restart.
package config
