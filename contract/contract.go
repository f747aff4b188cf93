//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"trenchsocial/domain/event"
)

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives hub events for one connection. Implementations must
// never block the caller: the hub relays from a single goroutine and a slow
// consumer must not stall every other connection.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// UserLookup resolves the current verification flag of an author handle.
// The hub stamps the result onto each message at publish time.
type UserLookup interface {
	VerifiedStatus(handle string) (bool, error)
}
