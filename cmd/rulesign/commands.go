package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/quantumauth-io/rulesign-go/client"
	"github.com/quantumauth-io/rulesign-go/config"
	"github.com/quantumauth-io/rulesign-go/log"
	"github.com/quantumauth-io/rulesign-go/redis"
	"github.com/quantumauth-io/rulesign-go/rules"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigPaths []string
	Verbose     bool
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "rulesign",
		Short:         "Sign and send requests using published signing rules.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&ro.ConfigPaths, "config", []string{"."},
		"directories searched for config.yaml")
	cmd.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newGetCmd(ro))
	cmd.AddCommand(newSignCmd(ro))
	return cmd
}

func newGetCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Send a signed GET and print the JSON response.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := setup(cmd.Context(), ro)
			if err != nil {
				return err
			}
			defer closeFn()

			body, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				var se *client.StatusError
				if errors.As(err, &se) {
					log.Error("authenticated call rejected", "status", se.Code, "body", se.Body)
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), body)
		},
	}
}

func newSignCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <path>",
		Short: "Print the signed header set for path without sending it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := setup(cmd.Context(), ro)
			if err != nil {
				return err
			}
			defer closeFn()

			set, err := c.Headers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, k := range set.Keys() {
				if _, err := fmt.Fprintf(out, "%s: %s\n", k, set[k]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// setup loads settings, initialises logging and wires the fetcher, optional
// cache and client. The returned func releases the cache connection.
func setup(ctx context.Context, ro *rootOptions) (*client.Client, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	noop := func() {}

	settings, err := config.Load(ro.ConfigPaths)
	if err != nil {
		return nil, noop, err
	}
	if ro.Verbose {
		settings.Log.Level = string(log.DebugLevel)
	}
	if err := log.Init(settings.Log); err != nil {
		return nil, noop, err
	}

	fc, err := settings.FetcherConfig()
	if err != nil {
		return nil, noop, err
	}

	closeFn := noop
	if settings.Cache.Enabled {
		rdb, err := redis.NewClient(ctx, settings.Cache.Redis)
		if err != nil {
			log.Warn("rules cache disabled", "error", err)
		} else {
			fc.Cache = redis.NewRulesCache(rdb, settings.Cache.Key, settings.Cache.TTL)
			closeFn = func() { _ = rdb.Close() }
		}
	}

	fetcher, err := rules.NewFetcher(fc)
	if err != nil {
		closeFn()
		return nil, noop, err
	}

	sess, err := settings.SessionValue()
	if err != nil {
		closeFn()
		return nil, noop, err
	}

	c, err := client.New(client.Config{
		BaseURL:        settings.Platform.BaseURL,
		Timeout:        settings.Platform.Timeout,
		AcceptLanguage: settings.Platform.AcceptLanguage,
	}, fetcher, sess)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return c, closeFn, nil
}

func writeJSON(w io.Writer, body json.RawMessage) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}
