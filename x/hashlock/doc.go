/*

Package hashlock keeps the secrets of hash lock conditions.

> A Hashlock is a type of encumbrance that restricts the spending of an output
> until a specified piece of data is publicly revealed.

The payment source generates a secret, locks the payment with its keccak256
hash and keeps the secret until the destination acknowledged the receipt
of the payment. The destination stores the secret once revealed.

*/
package hashlock
