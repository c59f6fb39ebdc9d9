/*
Package crypto provides the signing primitives shared by both channel
participants.

All signatures are Ethereum style recoverable secp256k1 signatures over the
signed-message hash of the payload: keccak256 of the "\x19Ethereum Signed
Message:\n32" prefix followed by keccak256(payload). This is what the
on-chain contracts verify, so states signed off-chain can be submitted
unchanged. The recovery byte is encoded as 27 or 28.
*/
package crypto
