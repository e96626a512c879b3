// Package config loads the apiprobe configuration.
//
// Configuration is read from a single YAML file, by default
//
//	~/.config/apiprobe/config.yaml
//
// (honoring XDG_CONFIG_HOME). Defaults are applied first and the file only
// needs to set what differs. A missing file is not an error.
//
// # Example
//
//	server_url: https://api.example.com/v1
//	log_level: info
//	oauth:
//	  client_name: apiprobe
//	  scopes: [openid, api.read]
//	  callback_port: 3000
//	  callback_timeout: 5m
//
// Command-line flags take precedence over the file.
package config
