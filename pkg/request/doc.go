// Package request correlates hub requests with their replies.
//
// Every outbound request carries a unique hexadecimal ID derived from
// the current time in milliseconds. The tracker records the pending
// request, matches the inbound reply by ID, and settles the waiting
// caller exactly once with a reply, a hub error, a timeout, or an
// abort when the connection goes down.
package request
