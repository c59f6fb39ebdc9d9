/*
Package node assembles a runnable payment channel node.

A node owns the protocol controller, the router mapping every message
type to its handler and the dispatcher feeding inbound messages to the
router one at a time. Connect authenticates with the service node and
pumps its message stream into the dispatcher until the context is
cancelled or the stream ends.
*/
package node
