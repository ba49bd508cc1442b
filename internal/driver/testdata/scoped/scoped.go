package scoped

import "github.com/kinmemodoki/handa"

type Logger struct {
	prefix string
}

func NewLogger() *Logger {
	return &Logger{prefix: "app"}
}

type Store interface {
	Get(key string) string
}

type MemStore struct {
	log *Logger
}

func NewMemStore(log *Logger) *MemStore {
	return &MemStore{log: log}
}

func (s *MemStore) Get(key string) string {
	return key
}

type App interface {
	Store() Store
	Logger() handa.Provider[*Logger]
}

var storeModule = handa.Module("store",
	handa.Singleton(handa.Provide(NewLogger)),
	handa.Bind[Store](handa.Provide(NewMemStore)),
)

var _ = handa.Component[App]("NewApp",
	handa.InScope(handa.ScopeSingleton),
	handa.Install(storeModule),
)
