// Package core defines the shared domain types of the agentgraph execution
// core: agent graphs with transfer/delegate edges, conversations and their
// persisted messages, the opaque step-function contract, and the error
// taxonomy surfaced to protocol adapters. Every other package depends on
// core; core itself stays free of transport and persistence concerns.
package core
