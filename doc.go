/*
Package simplex defines all common interfaces that tie together the
subpackages of a client side payment channel node, as well as
implementations of some of the simpler components (when interfaces would be
too much overhead).

A node keeps two one directional ledgers (simplex states) per channel with
its peer. Inbound protocol messages arrive wrapped in a CelerMsg envelope and
are dispatched, strictly one at a time, to a Handler registered for their
MsgType. Handlers and outbound request builders read and write channel and
payment records through a KVStore, always inside a single cache wrap so that
all changes caused by one message are applied atomically.

We pass context through context.Context between the dispatcher, handlers
and builders. A logger can be attached to a context with WithLogger and
retrieved with GetLogger.
*/
package simplex
