// Package license holds the license domain model: the persisted license
// record, machine identity normalization, and the seat binding rules that
// govern how many machines a key may be bound to.
package license
