// Package sdunit talks to systemd about the relay daemon: readiness
// notifications (sd_notify) and unit status over D-Bus.
package sdunit
