// Package config loads server configuration from YAML, TOML or JSON5
// files, .env files and OPENRPC_* environment variables, and turns it into
// server, middleware and transport options.
//
// A minimal YAML file:
//
//	info:
//	  title: Calculator
//	  version: 1.2.0
//	transport:
//	  kind: http
//	  addr: ":8080"
//	log:
//	  level: debug
//	security:
//	  oauth:
//	    type: oauth2
//	    flow: authorizationCode
//	    auth_url: https://auth.example.com/authorize
//	    token_url: https://auth.example.com/token
//	    scopes:
//	      read: Read access
package config
