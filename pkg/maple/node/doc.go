// Package node hosts the per-port device bookkeeping: periodic device
// info polling, sub peripheral discovery through the presence bits of
// response sender addresses, and detach detection on failure streaks.
package node
