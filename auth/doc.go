// Package auth identifies the consortium organization behind an HTTP
// request.
//
// Two authenticators are provided: JWT bearer tokens signed with a shared
// HS256 secret and carrying an organization claim, and static API keys
// bound to one organization each. Authorization of individual status
// transitions is left to workflow.Authority; this package only answers
// "which organization is calling".
package auth
