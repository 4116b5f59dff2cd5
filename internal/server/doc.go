// Package server implements the Kairo HTTP API.
//
// Requests under /api/v1 carry a Supabase access token, except the daily
// verse and the flow listing. AI flow calls are rate limited per user and
// journal routes additionally require the unlock token issued by
// POST /api/v1/journal/unlock. The root router also serves the monitoring
// endpoints: /health, /config, /stats and /metrics.
package server
