/*
Package protocol implements the channel state protocol engine of a payment
channel client.

Inbound messages are processed by one handler per message type, see
RegisterRoutes. Outbound operations (opening a channel, sending and
settling conditional payments, deposits and withdrawals) are methods of
the Controller.

Every state advancing request proposed by the peer is verified against the
stored state. A request that cannot be accepted leaves the store unchanged
and is answered with an error carrying the last state both parties agreed
on, so that the peer can resynchronize.
*/
package protocol
