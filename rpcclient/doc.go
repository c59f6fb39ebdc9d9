/*
Package rpcclient connects a node to its service node over gRPC.

The service node exposes the rpc.Rpc service: CreateSession authenticates
the node and returns a snapshot of its channels, Send delivers a protocol
message, RequestOpenChannel asks the service node to cosign a channel
initializer and Subscribe streams every message addressed to the node.
All payloads are gogo protobuf messages.
*/
package rpcclient
