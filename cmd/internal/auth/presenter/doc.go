// Package presenter verifies presenter bearer tokens on the realtime gateway.
//
// Tokens are HS256 JWTs issued by the account service; the subject claim is
// the presenter id. This package only verifies them. Sign exists for local
// tooling and tests.
package presenter
