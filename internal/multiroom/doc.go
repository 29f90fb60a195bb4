// Package multiroom fans a single logical command out to a named group of
// devices and aggregates per-device outcomes, so several TVs can be driven
// as one.
package multiroom
