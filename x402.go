// Package x402 implements the client side of the x402 payment-challenge
// protocol: decoding 402 responses into payment challenges, brokering a
// single pending challenge between the request pipeline and a
// presentation layer, verifying receipts, and resuming the original
// request exactly once with a session token.
package x402
