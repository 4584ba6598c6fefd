// Package ssiclient calls the HTTP APIs of the SSI verifier and issuer.
//
// Three backends are covered: the verifier client (QR authorization and the
// per-attempt event stream), the verifier service (VP query management and
// QR display links) and the issuer (credential schemas and offerings).
package ssiclient
