// Package workers provides abstractions for managing and running
// background workers in the application.
// It defines the Worker interface and a Workers aggregate that allows
// starting and stopping multiple workers in a unified way.
package workers

import "context"

// Worker is the interface that must be implemented by any background worker.
//
// Run starts the worker's execution. Implementations are expected to spawn
// goroutines internally and return promptly; ctx cancellation requests
// shutdown. Stop blocks until the worker has released its resources.
//
// Example implementation:
//
//	type MyWorker struct{}
//
//	func (w *MyWorker) Run(ctx context.Context) {
//	    // start background processing
//	}
//
//	func (w *MyWorker) Stop() {
//	    // wait for background processing to finish
//	}
type Worker interface {
	Run(ctx context.Context)
	Stop()
}
