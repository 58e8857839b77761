// Package agent is the reference delegate application served behind the
// front door: an A2A agent that publishes its agent card, accepts JSON-RPC
// 2.0 requests on "/" and runs an Executor for each incoming message.
//
// The front door never looks inside this package; any http.Handler can take
// its place.
package agent
