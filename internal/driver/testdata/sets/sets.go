package sets

import "github.com/kinmemodoki/handa"

type Handler interface {
	Handle() string
}

type AuthHandler struct{}

func (h *AuthHandler) Handle() string { return "auth" }

func NewAuthHandler() Handler {
	return &AuthHandler{}
}

type LogHandler struct{}

func (h *LogHandler) Handle() string { return "log" }

func NewLogHandler() Handler {
	return &LogHandler{}
}

type App interface {
	Handlers() []Handler
	Routes() map[string]Handler
}

var handlerModule = handa.Module("handlers",
	handa.IntoSet(handa.Provide(NewAuthHandler)),
	handa.IntoSet(handa.Provide(NewLogHandler)),
	handa.IntoMap("auth", handa.Provide(NewAuthHandler)),
	handa.IntoMap("log", handa.Provide(NewLogHandler)),
)

var _ = handa.Component[App]("NewApp",
	handa.Install(handlerModule),
)
