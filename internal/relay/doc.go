// Package relay mirrors relayed events and board states to an MQTT broker
// so dashboards and other tools can follow a simulator session.
package relay
