// Command foreman is the CLI for the foreman daemon. It talks to the daemon's
// HTTP API for queue management, status reporting, and live queue watching.
package main
