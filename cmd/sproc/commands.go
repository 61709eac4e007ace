package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/loykin/sproc"
	"github.com/loykin/sproc/pkg/client"
)

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// RemoteFlags route a lifecycle command to a running serve daemon instead of
// acting on the local store directly.
type RemoteFlags struct {
	APIUrl     string
	Key        string
	APITimeout time.Duration
}

func buildRoot() *cobra.Command {
	gf := &GlobalFlags{}
	rf := &RemoteFlags{}

	root := &cobra.Command{
		Use:           "sproc",
		Short:         "Per-user service supervisor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&gf.ConfigPath, "config", "", "path to services.toml (default: ~/.config/sproc/services.toml)")

	addRemoteFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&rf.APIUrl, "api-url", "", "control server base URL; act remotely instead of on the local store")
		c.Flags().StringVar(&rf.Key, "key", "", "shared secret for --api-url")
		c.Flags().DurationVar(&rf.APITimeout, "timeout", 10*time.Second, "request timeout for --api-url")
	}

	startCmd := &cobra.Command{
		Use:   "start <service>",
		Short: "Start a named service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if rf.APIUrl != "" {
				return remote(rf).Start(cmd.Context(), name)
			}
			sup, err := sproc.New(gf.ConfigPath, nil)
			if err != nil {
				return err
			}
			if err := sup.Start(name); err != nil {
				return err
			}
			fmt.Printf("started %s\n", name)
			return nil
		},
	}
	addRemoteFlags(startCmd)

	killCmd := &cobra.Command{
		Use:   "kill <service>",
		Short: "Stop a named service without touching its restart policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if rf.APIUrl != "" {
				return remote(rf).Kill(cmd.Context(), name)
			}
			sup, err := sproc.New(gf.ConfigPath, nil)
			if err != nil {
				return err
			}
			if err := sup.Kill(name); err != nil {
				return err
			}
			fmt.Printf("killed %s\n", name)
			return nil
		},
	}
	addRemoteFlags(killCmd)

	infoCmd := &cobra.Command{
		Use:   "info <service>",
		Short: "Show a live snapshot of a running service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if rf.APIUrl != "" {
				text, err := remote(rf).Info(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Print(text)
				return nil
			}
			sup, err := sproc.New(gf.ConfigPath, nil)
			if err != nil {
				return err
			}
			snap, err := sup.Info(name)
			if err != nil {
				return err
			}
			body, err := toml.Marshal(snap)
			if err != nil {
				return err
			}
			fmt.Print(string(body))
			return nil
		},
	}
	addRemoteFlags(infoCmd)

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List defined services and their recorded state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sproc.LoadConfig(gf.ConfigPath)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(cfg.Services))
			for n := range cfg.Services {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				def := cfg.Services[n]
				state := "stopped"
				pid := ""
				if rec, ok := cfg.States.Get(n); ok {
					state = string(rec.State)
					if rec.PID > 0 {
						pid = fmt.Sprintf(" pid=%d", rec.PID)
					}
				}
				restart := ""
				if def.Restart {
					restart = " restart=on"
				}
				fmt.Printf("%-20s %s%s%s\n", n, state, pid, restart)
			}
			return nil
		},
	}

	pinCmd := &cobra.Command{
		Use:   "pin <file>",
		Short: "Install a hand-edited TOML file as the primary configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sproc.Pin(gf.ConfigPath, args[0]); err != nil {
				return err
			}
			fmt.Printf("pinned %s\n", args[0])
			return nil
		},
	}

	root.AddCommand(startCmd, killCmd, infoCmd, lsCmd, pinCmd, buildServe(gf))
	return root
}

func remote(rf *RemoteFlags) *client.Client {
	return client.New(client.Config{BaseURL: rf.APIUrl, Key: rf.Key, Timeout: rf.APITimeout})
}
