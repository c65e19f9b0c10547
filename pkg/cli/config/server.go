package config

import "github.com/urfave/cli/v3"

// Server holds server configuration
type Server struct {
	Addr        string
	QueueBuffer int
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("RELEASE_BOT_ADDR"),
		},
		&cli.IntFlag{
			Name:        "queue-buffer",
			Usage:       "Per-repository work queue capacity",
			Value:       64,
			Destination: &c.QueueBuffer,
			Sources:     cli.EnvVars("RELEASE_BOT_QUEUE_BUFFER"),
		},
	}
}
