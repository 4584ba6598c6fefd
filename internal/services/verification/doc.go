// Package verification bridges push-based verification results to a
// pull-based polling contract.
//
// Each attempt owns one event stream to the verifier. A Bridge turns that
// stream into a record in the Store plus a single terminal snapshot that any
// number of pollers can wait on. The Service starts attempts, answers status
// polls and owns the bridge table; the Sweeper bounds how long attempts and
// records live.
package verification
