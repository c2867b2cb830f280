// Package harness runs YAML scenarios against the lifecycle engine and the
// reconciliation scheduler.
//
// Each scenario gets a fresh in-memory store, a fake clock pinned to a fixed
// epoch and recording collaborators. Steps drive the system the way the
// running service would (sweeps, timer firings, ingests, attendance changes
// and admin actions) and the collaborator calls each step makes are captured
// as the trace. Assertions check the trace and the final records; the
// rendered trace is compared against a golden file.
//
// Scenario format:
//
//	name: start-above-threshold
//	description: an event with enough attendees starts at its lead time
//	config:
//	  threshold: 3
//	  interval: 60s
//	  announce_lead: 5s
//	events:
//	  - id: 1
//	    title: Quals
//	    start: 10s
//	    length: 1h
//	    attendees: [a, b, c]
//	steps:
//	  - action: sweep
//	  - action: advance
//	    by: 5s
//	  - action: fire
//	assertions:
//	  - type: trace_count
//	    op: CreateSpace
//	    count: 1
//	  - type: final_state
//	    event: 1
//	    expect:
//	      state: started
//
// Times in events and feed items are offsets from the scenario epoch.
package harness
