// Package verses provides the verse of the day shown on the dashboard, in
// French, English, Spanish, Portuguese and Swahili.
package verses
