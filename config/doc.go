// Package config loads the offload binary's settings.
//
// Values come from, in increasing precedence: built-in defaults, an
// optional offload.yaml, an optional .env file and OFFLOAD_* environment
// variables. Nested keys map to env names by upper-casing and replacing
// dots with underscores, so worker.concurrency becomes
// OFFLOAD_WORKER_CONCURRENCY.
package config
