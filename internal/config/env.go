package config

import "os"

// Env reads settings from environment variables named by EnvName.
type Env struct {
	lookup func(string) (string, bool)
}

func NewEnv() *Env { return &Env{lookup: os.LookupEnv} }

func (e *Env) Get(key string) (string, bool) {
	return e.lookup(EnvName(key))
}
