/*
Package ethledger implements the protocol ledger on top of an Ethereum
JSON-RPC endpoint.

Channels live in the ledger contract; conditional payment resolutions live
in the pay registry contract. Read only methods use eth_call, transactions
are signed with the node key and awaited until mined. A reverted
transaction is reported as ErrLedger.
*/
package ethledger
