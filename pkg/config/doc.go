/*
Package config loads whisker's configuration.

Sources, lowest precedence first:

  - built-in defaults (Default)
  - an optional YAML file passed with --config
  - a .env file in the working directory
  - WHISKER_* environment variables
  - command-line flags, applied by cmd/whisker after Load

Example file:

	http_addr: ":8000"
	grpc_addr: ":9000"
	data_dir: /var/lib/whisker
	log:
	  level: info
	  json: true
	buffer:
	  capacity: 1000
	  subscriber_buffer: 100
	  replay_count: 50
	  history_default: 100
	  heartbeat: 30s
	generator:
	  enabled: true
	  interval: 3s
	cors:
	  allowed_origin: "*"
	rate_limit:
	  rps: 10
	  burst: 20

Nested keys map to environment variables by joining with underscores, e.g.
WHISKER_BUFFER_HEARTBEAT=10s or WHISKER_GENERATOR_ENABLED=false.

Watcher reloads the file on change. Only the log level and the generator
settings are applied live; everything else needs a restart.
*/
package config
