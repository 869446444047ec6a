// Package gateway wires the token store, client registry, session coordinator
// and resolver into a running HTTP gateway.
//
// Run is the command line entry point; New builds the components from a
// config.Config for embedding or tests.
package gateway
