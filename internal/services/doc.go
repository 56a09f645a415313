// Package services contains the orchestration layer between the HTTP
// transport and the license domain: the activation flow, the admin key
// lifecycle operations, and the health snapshot.
package services
