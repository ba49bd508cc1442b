package inject

import "github.com/kinmemodoki/handa"

type Config struct {
	Name string
}

func NewConfig() *Config {
	return &Config{Name: "worker"}
}

type Job struct {
	Cfg *Config `handa:"inject"`
	ID  string
}

type App interface {
	InjectJob(job *Job)
}

var jobModule = handa.Module("jobs",
	handa.Provide(NewConfig),
)

var _ = handa.Component[App]("NewApp",
	handa.Install(jobModule),
)
