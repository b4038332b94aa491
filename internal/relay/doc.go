// Package relay turns inbound monitoring events into chat notifications.
//
// Dispatcher handles one event per call: resolve project settings, consult
// the dedup cache (group events only), format, send once, record the dedup
// marker. Delivery problems are logged and counted, never returned to the
// event pipeline as errors.
//
// Pool runs dispatches on a bounded queue and worker set so a slow chat
// endpoint cannot stall event intake.
package relay
