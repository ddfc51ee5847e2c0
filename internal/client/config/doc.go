// Package config loads runtime configuration for the vaultctl command.
//
// Later sources override earlier ones:
//
//  1. built-in defaults,
//  2. a JSON file named with -c or -config,
//  3. the GOPHVAULT_ACCESS_TOKEN environment variable,
//  4. command-line flags.
//
// Flags:
//
//	-a string     address:port of the vault gRPC endpoint
//	-t string     access token issued by the identity layer
//	-w duration   per-request timeout, e.g. 10s
//
// JSON file:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "access_token": "eyJhbGciOi...",
//	  "request_timeout": "10s"
//	}
//
// Prefer the environment variable or the JSON file for the token: flags are
// visible to other local users in the process list.
package config
