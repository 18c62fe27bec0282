package cmd

import (
	"context"
	"crypto/rsa"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/catalog"
	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/akademi-crypto/vidhub/pkg/config"
	"github.com/akademi-crypto/vidhub/pkg/discord"
	"github.com/akademi-crypto/vidhub/pkg/mediahost"
	"github.com/akademi-crypto/vidhub/pkg/metrics"
	"github.com/akademi-crypto/vidhub/pkg/upload"
	"github.com/akademi-crypto/vidhub/pkg/vhdb"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/akademi-crypto/vidhub/pkg/vhssh"
	"github.com/akademi-crypto/vidhub/pkg/vhtus"
	"github.com/akademi-crypto/vidhub/pkg/webapi"
	"github.com/akademi-crypto/vidhub/pkg/webapi/apimiddleware"
	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "vidhubd",
	Short: "Run the vidhub video API server",
	Long: `vidhubd serves the video REST API. Uploads are streamed to the media
host while their progress is published over SSE and websockets. A tus
endpoint for resumable uploads and an SSH admin console are started when
TUS_DIR and SSH_PORT are configured.`,
	Run: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().IntP("port", "p", 0, "port to listen on (overrides PORT)")
}

// loadConfig reads the dotenv file and lets command line flags override it.
func loadConfig(cmd *cobra.Command) *config.ViperConfig {
	c := config.MustLoadFromDotenv()

	if err := c.BindFlag("PORT", cmd.Flags().Lookup("port")); err != nil {
		log.Fatalf("Unable to bind --port: %s", err)
	}

	if err := c.BindFlag("LOG_LEVEL", cmd.Flags().Lookup("log-level")); err != nil {
		log.Fatalf("Unable to bind --log-level: %s", err)
	}

	config.SetConfig(c)

	if err := clog.SetLevelFromString(clog.Global, c.GetKeyWithDefault("LOG_LEVEL", "info")); err != nil {
		log.Warnf("Ignoring LOG_LEVEL: %s", err)
	}

	return c
}

func runServer(cmd *cobra.Command, _ []string) {
	c := loadConfig(cmd)

	db := vhdb.MustConnectToDB(c)
	if c.GetBoolKeyWithDefault("DB_AUTO_MIGRATE", false) {
		if err := vhdb.AutoMigrate(db); err != nil {
			log.Fatalf("Unable to migrate database: %s", err)
		}
	}

	stors := stor.NewGormStors(db)
	m := metrics.NewUploadMetrics(prometheus.DefaultRegisterer)
	host := mediahost.NewClient(mediahost.ConfigFrom(c))

	opts := upload.OptionsFrom(c)
	opts.Metrics = m
	uploads := upload.NewService(host, stors.VideoStor, stors.CategoryStor, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	routeOpts := RouteOpts{
		db:               db,
		stors:            stors,
		uploads:          uploads,
		catalog:          catalog.NewService(stors.VideoStor, host, m),
		discord:          discord.NewClient(discord.ConfigFrom(c)),
		clerkKey:         clerkPublicKey(c),
		webhookSecret:    c.GetKey("CLERK_WEBHOOK_SECRET"),
		adminEmailDomain: c.GetKey("ADMIN_EMAIL_DOMAIN"),
		spoolDir:         c.GetKey("UPLOAD_SPOOL_DIR"),
	}

	if tusCfg := vhtus.ConfigFrom(c); tusCfg.Dir != "" {
		ingress, err := vhtus.New(tusCfg, uploads)
		if err != nil {
			log.Fatalf("Unable to create tus ingress: %s", err)
		}
		go ingress.Run(ctx)

		routeOpts.tus = ingress
		routeOpts.tusHandler = ingress.Handler()
		routeOpts.tusBasePath = tusCfg.BasePath
		log.Infof("tus uploads accepted at %s (storage %s)", tusCfg.BasePath, tusCfg.Dir)
	}

	var sshServer *vhssh.Server
	if sshCfg := vhssh.ConfigFrom(c); sshCfg.Enabled() {
		var err error
		if sshServer, err = vhssh.NewServer(sshCfg, uploads); err != nil {
			log.Fatalf("Unable to create SSH console: %s", err)
		}

		go func() {
			if err := sshServer.Start(); err != nil {
				log.Errorf("SSH console stopped: %s", err)
			}
		}()
	}

	e := newEcho()
	setupRoutes(e, routeOpts)

	port := c.GetKeyWithDefault("PORT", "3000")
	go func() {
		log.Infof("vidhubd listening on port %s", port)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Unable to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP shutdown: %s", err)
	}

	if sshServer != nil {
		_ = sshServer.Stop(shutdownCtx)
	}

	if err := uploads.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Uploads still running at shutdown: %s", err)
	}
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = webapi.HTTPErrorHandler
	e.Validator = webapi.NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			clog.UsingCtx(clog.HTTP).WithFields(log.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			}).Debug("request")
			return nil
		},
	}))

	return e
}

// clerkPublicKey returns nil when no key is configured, which makes every
// authenticated route answer 401.
func clerkPublicKey(c config.Configer) *rsa.PublicKey {
	pem := c.GetKey("CLERK_JWT_PUBLIC_KEY")
	if pem == "" {
		log.Warnf("CLERK_JWT_PUBLIC_KEY is not set, authenticated routes will reject every request")
		return nil
	}

	key, err := apimiddleware.ParsePublicKey(pem)
	if err != nil {
		log.Fatalf("%s", err)
	}

	return key
}
