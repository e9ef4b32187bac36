// Package reward pays match winners through the Crypto Royale wallet API.
//
// RoyaleClient wraps the HTTP API (increment, balance, user balance and user
// permissions). Dispatcher sits in front of it so the match never waits on the
// network: the engine calls Increment, which only queues a Payout, and a
// worker started with Run performs the transfer with jittered exponential
// backoff between attempts.
//
// Every payout carries a nonce generated when it is queued. The API treats the
// nonce as the transaction ID, so retries of the same payout are idempotent.
//
// Failures are logged and counted in Stats; they never reach the match.
package reward
