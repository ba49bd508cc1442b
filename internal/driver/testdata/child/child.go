package child

import "github.com/kinmemodoki/handa"

type Config struct {
	env string
}

func NewConfig() *Config {
	return &Config{env: "prod"}
}

type Session struct {
	cfg *Config
}

func NewSession(cfg *Config) *Session {
	return &Session{cfg: cfg}
}

type Admin interface {
	Session() *Session
}

type App interface {
	Admin() Admin
}

var configModule = handa.Module("config",
	handa.Singleton(handa.Provide(NewConfig)),
)

var sessionModule = handa.Module("session",
	handa.Provide(NewSession),
)

var _ = handa.Component[App]("NewApp",
	handa.InScope(handa.ScopeSingleton),
	handa.Install(configModule),
	handa.Child[Admin]("NewAdmin",
		handa.Install(sessionModule),
	),
)
