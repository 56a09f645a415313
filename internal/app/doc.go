// Package app provides application initialization and lifecycle management
// for the license server. It wires configuration, logging, observability,
// the key store, the token issuer, and the HTTP surface together, and owns
// startup and graceful shutdown.
//
// The initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and observability
//	3. Load signing key material (fatal when unavailable)
//	4. Open the license key store
//	5. Construct services and handlers
//	6. Configure and start the HTTP server
package app
