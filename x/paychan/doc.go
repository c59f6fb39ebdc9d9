/*
Package paychan implements the simplex state model of a bilateral payment
channel.

A channel between self and the peer carries two independent one
directional ledgers, called simplex states. The incoming state is proposed
by the peer (the peer is its "peer from") and records everything the peer
pays to us. The outgoing state is proposed by us and records what we pay to
the peer. Each state carries a cumulative transfer, the list of pending
conditional payment ids and the total amount locked by them. A state is
advanced only by a message signed by its peer from, with a sequence number
strictly greater than the stored one, and becomes binding once cosigned by
the other party.

Channel balances are always derived from the on-chain deposit and
withdrawal snapshot together with both states, see CalculateBalance.
*/
package paychan
