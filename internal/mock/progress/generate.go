// Package mockprogress holds a gomock stand-in for progress.Sink.
package mockprogress

//go:generate -command mockgen go run go.uber.org/mock/mockgen -package=mockprogress -destination=./mocks.go github.com/romshelf/romshelf/progress Sink
