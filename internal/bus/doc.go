// Package bus implements the message-bus feed collaborator: a Kafka
// consumer that decodes alarm status-change messages and forwards them
// to the watcher's ingestion entry point. Idle messages and messages
// missing required fields are dropped before they reach the core.
package bus
