/*
Package payment implements conditional payments and their local records.

A conditional pay is identified by its payment id, derived from the
serialized pay and the address of the pay resolver contract. Both parties
compute the id independently, so it serves as the idempotency key of every
message referring to the payment.

Status only moves forward, see Transition for the allowed steps.
*/
package payment
