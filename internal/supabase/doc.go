// Package supabase is a small REST client for the parts of Supabase Kairo
// uses: PostgREST table access for the document store and the Auth password
// grant for journal re-authentication.
package supabase
