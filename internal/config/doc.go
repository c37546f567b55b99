// Package config defines the YAML settings of the alarm-watcher daemon:
// the message-bus feed, the three per-channel notification timeouts, the
// e-mail transport, the laboratory signal relay, and the metrics endpoint.
//
// Besides plain Load/Save/Validate helpers, the package offers a Manager
// that holds an atomic snapshot of the settings. The watcher loops read
// the snapshot on every tick, so a Reload (triggered by SIGHUP) changes
// timeouts at runtime without restarting the daemon.
package config
