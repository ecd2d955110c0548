// Package discovery creates entities dynamically from retained configuration payloads
// published under the discovery prefix, following the Home Assistant MQTT discovery
// convention: a payload on <prefix>/<component>/[<node>/]<object>/config configures one
// entity, a later payload on the same topic reconfigures it in place, and an empty payload
// removes it.
//
// Publishers may abbreviate configuration field names to save retained-message space (e.g.
// stat_t for state_topic); this package expands the abbreviations defined by the convention
// before handing payloads to the platform schemas.
//
// See https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery.
package discovery
