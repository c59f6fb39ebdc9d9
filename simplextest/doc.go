/*
Package simplextest provides fixtures for testing a node against a scripted
peer: keys, an in-memory ledger and a loopback transport delivering the
peer answers back to the node.
*/
package simplextest
