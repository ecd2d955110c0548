// Package platform contains host-side implementations of MQTT entity platforms. Each
// platform maps messages delivered by the transport to entity state and hands state
// refreshes back to the hearth.Host; it never talks to the broker directly beyond the
// subscriptions it registers.
//
// Configuration enters a platform through its schema functions (ParseStaticYAML,
// ParseDiscoveryJSON), which apply defaults and validate every field. Platform entities
// assume their configuration is valid and perform no validation of their own.
package platform
