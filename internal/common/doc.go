// Package common holds small interfaces shared across the pipeline
// manager's components. Its Stoppable interface is implemented by the
// Control API's HTTP server; the Stream Manager (ShutdownAll) and the
// Recording Registry (Close) have their own shutdown methods.
package common
