// Package test provides infrastructure and utilities for integration testing of the outreach API.
//
// The Suite type wires a complete stack against a temporary SQLite database:
// repositories, services, the fiber app with every v1 route, an httptest
// server and the typed API client. Instagram is replaced by
// instagram.MockClient so tests control posts, comments and sends.
//
// Example Usage:
//
//	func TestExample(t *testing.T) {
//	    suite := test.NewSuite(t)
//	    defer suite.Cleanup()
//
//	    // Configure suite.IG, seed rows through the repositories,
//	    // then call the API through suite.APIClient
//	}
package test
