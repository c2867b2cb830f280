// Package job runs periodic tasks.
//
// A Runner owns one task and its interval. Start fires the task once right
// away and then every interval. Stop cancels future firings but lets a
// firing already in progress finish. The Manager groups the named runners of
// the service so configuration changes restart them together.
package job
