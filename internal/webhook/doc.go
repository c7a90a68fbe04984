// Package webhook validates share requests and posts embed payloads to
// third-party webhook URLs.
package webhook
