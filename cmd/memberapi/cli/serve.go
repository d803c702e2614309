package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faucetdb/memberapi/internal/server"
	"github.com/faucetdb/memberapi/internal/service"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Long:  "Start the HTTP server that exposes the admin REST API and its OpenAPI document.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runServe(cmd)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")

	opts.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	opts.v.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func (o *rootOptions) runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.openApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.settings
	logger := a.logger
	logger.Info("admin store ready", "path", s.Database.Path, "debug", s.Debug())

	if s.SecretGenerated {
		logger.Warn("no secret key configured; tokens will not survive a restart (set SECRET_KEY)")
	}
	if n, err := a.admins.Count(ctx); err != nil {
		logger.Warn("failed to count admins", "error", err)
	} else if n == 0 {
		logger.Warn("no admin account found - run: memberapi admin create")
	}

	authSvc := service.NewAuthService(a.identity, s.Auth.SecretKey, s.Auth.TokenTTL)

	srvCfg := server.DefaultConfig()
	srvCfg.Host = s.Server.Host
	srvCfg.Port = s.Server.Port
	srvCfg.ReadTimeout = s.Server.ReadTimeout
	srvCfg.WriteTimeout = s.Server.WriteTimeout
	srvCfg.ShutdownTimeout = s.Server.ShutdownTimeout
	srvCfg.CORSOrigins = s.Server.CORSOrigins
	if s.RateLimit.Enabled {
		srvCfg.RateLimit = s.RateLimit.RequestsPerMinute
	}
	srvCfg.LoginAttempts = s.RateLimit.LoginAttempts

	srv := server.New(srvCfg, a.identity, authSvc, versionString(), logger)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "→ memberapi %s\n", versionString())
	fmt.Fprintf(out, "→ Listening on http://%s\n", s.Server.Addr())
	fmt.Fprintf(out, "→ OpenAPI:    http://%s/api/openapi.json\n", s.Server.Addr())
	fmt.Fprintf(out, "→ Health:     http://%s/healthz\n", s.Server.Addr())
	fmt.Fprintln(out)

	return srv.ListenAndServe()
}
