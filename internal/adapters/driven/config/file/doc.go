// Package file loads the llmsync configuration from disk.
//
// TOML (llmsync.toml) is the primary format; YAML is accepted for
// .yaml/.yml files, including the key layout of the older
// llms_config.yaml. A .env file beside the config is read, and LLMSYNC_*
// environment variables override secrets and paths.
package file
