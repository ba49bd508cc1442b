package basic

import "github.com/kinmemodoki/handa"

type Config struct {
	Addr string
}

func NewConfig() *Config {
	return &Config{Addr: "localhost:8080"}
}

type Service struct {
	cfg *Config
}

func NewService(cfg *Config) *Service {
	return &Service{cfg: cfg}
}

type App interface {
	Service() *Service
}

var appModule = handa.Module("app",
	handa.Provide(NewConfig),
	handa.Provide(NewService),
)

var _ = handa.Component[App]("NewApp",
	handa.Install(appModule),
)
