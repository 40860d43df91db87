// Package sched queues Maple transmissions by priority and send time.
package sched

// The scheduler favors urgency over fairness: buckets are scanned in
// ascending priority order and only the head of each bucket is
// eligible, so a bucket whose head is scheduled for the future holds
// back everything behind it while lower priorities get a chance.
//
// Nothing in this package is synchronized. A port is driven by exactly
// one goroutine which owns all scheduler calls; transmitter callbacks
// run on that same goroutine.
