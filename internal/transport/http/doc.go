// Package http contains the HTTP handlers for the license activation and
// admin APIs. Handlers bind and validate requests, delegate to the services
// layer, and translate domain errors into the stable API error envelope.
package http
