// Package middleware provides HTTP middleware for vidshare.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with Range and
//     Content-Range columns
//   - Prometheus request metrics with bounded path labels
//
// Both wrap the response writer in a way that keeps websocket hijacking and
// http.ResponseController deadlines working.
package middleware
