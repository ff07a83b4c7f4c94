// Command termihui runs the multi-session terminal-sharing server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fnc12/termihui-sub000/internal/config"
	logger "github.com/fnc12/termihui-sub000/internal/logging"
	"github.com/fnc12/termihui-sub000/internal/server"
)

func main() {
	var (
		bindAddress string
		port        int
		dev         bool
	)

	root := &cobra.Command{
		Use:   "termihui",
		Short: "Multi-session terminal-sharing server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Configure(logger.GetLogLevelFromEnv(dev), dev)

			cfg, err := config.Resolve(bindAddress, port)
			if err != nil {
				return err
			}

			srv, err := server.New(log, cfg)
			if err != nil {
				return err
			}
			return srv.Run()
		},
	}

	root.Flags().StringVar(&bindAddress, "bind", "127.0.0.1", "address to bind the server to")
	root.Flags().IntVar(&port, "port", 7820, "port to listen on")
	root.Flags().BoolVar(&dev, "dev", false, "enable developer-friendly console logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
