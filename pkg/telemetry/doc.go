// Package telemetry provides the bridge status protocol and all message schemas.
package telemetry
