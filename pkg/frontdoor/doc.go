// Package frontdoor is the request-dispatch layer in front of the agent
// application.
//
// Every inbound request enters through a Dispatcher, which picks exactly one
// of two destinations:
//
//   - the HealthResponder, for the reserved liveness path (default /health);
//   - the delegate application, reached through a PrefixRewriter that strips
//     the routing prefix (default /a2a) from the path.
//
// Requests that are not plain HTTP exchanges (CONNECT tunnels, protocol
// upgrades) go to the delegate untouched. Errors and cancellation raised by
// the delegate are never intercepted here.
package frontdoor
