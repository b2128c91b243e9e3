package server

import (
	"time"
)

type Conf struct {
	Addr string

	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration

	// IdleSession reaps sessions with no traffic for this long.
	IdleSession time.Duration
}

func DefaultConf(addr string) Conf {
	return Conf{
		Addr:         addr,
		TimeoutRead:  time.Second * 30,
		TimeoutWrite: time.Second * 60,
		TimeoutIdle:  time.Second * 120,
		IdleSession:  time.Minute * 5,
	}
}
