// Package auth identifies API callers and re-checks their password.
//
// Verifier validates Supabase access tokens (HS256, signed with the
// project JWT secret) and puts the caller's User in the request context.
// A Reauthenticator confirms a password before the private journal is
// unlocked, either through a Supabase password grant or against bcrypt
// hashes from the configuration.
package auth
