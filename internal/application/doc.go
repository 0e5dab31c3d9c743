// Package application provides application initialization and dependency wiring.
// It loads and resolves the forum settings, prepares the optional database
// probe, and builds the handlers, router and HTTP server, keeping the main
// package focused on CLI parsing and orchestration.
package application
