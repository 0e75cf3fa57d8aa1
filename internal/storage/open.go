package storage

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/PoluyanbIch/SheetQuizBot/internal/service"
)

// Store is a service.LocalStore that owns a resource.
type Store interface {
	service.LocalStore
	Close() error
}

// Open picks a backend from dsn:
//
//	""  or "memory"          in-process map, lost on restart
//	"sqlite:<path>"          local sqlite file
//	"postgres://..."         shared Postgres database
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		log.Println("storage: using in-memory store, answers are lost on restart")
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported local store %q", dsn)
	}
}
