package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rcvieira/fluxo/core/config"
	"github.com/rcvieira/fluxo/core/database"
	"github.com/rcvieira/fluxo/infrastructure/valkey"
	"github.com/rcvieira/fluxo/pkg/utils"
	"github.com/rcvieira/fluxo/repository"
	"github.com/rcvieira/fluxo/ui/rest"
	"github.com/rcvieira/fluxo/ui/rest/middleware"
	"github.com/rcvieira/fluxo/ui/websocket"
	"github.com/rcvieira/fluxo/usecase"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the workflow tracker API and websocket push channel",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	cfg := config.Global

	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		cfg.App.BasicAuth = strings.Split(baFlag, ",")
	}

	if len(cfg.App.BasicAuth) == 0 {
		logrus.Fatalln("APP_BASIC_AUTH is required; set APP_BASIC_AUTH=<user>:<secret>[,<user2>:<secret2>] and restart.")
	}
	account := make(map[string]string)
	for _, basicAuth := range cfg.App.BasicAuth {
		ba := strings.Split(basicAuth, ":")
		if len(ba) != 2 {
			logrus.Fatalln("Basic auth is not valid, please use the format <user>:<secret>")
		}
		account[ba[0]] = ba[1]
	}

	db, err := database.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Websocket hub: the server end of the push channel and the change
	// emitter the usecases publish into.
	hub := websocket.NewHub()
	if cfg.Database.ValkeyEnabled {
		vkClient, err := valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Fatalf("Failed to connect to Valkey: %v", err)
		}
		defer vkClient.Close()
		serverID := utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)
		hub.SetValkeyClient(vkClient, serverID)
		logrus.Infof("Distributed broadcast enabled (server id %s)", serverID)
	}
	go hub.Run(ctx)

	projectRepo := repository.NewProjectGormRepository(db)
	commentRepo := repository.NewCommentGormRepository(db)
	noteRepo := repository.NewNoteGormRepository(db)
	npsRepo := repository.NewNpsGormRepository(db)

	projectUsecase := usecase.NewProjectUsecase(projectRepo, hub)
	commentUsecase := usecase.NewCommentUsecase(commentRepo, projectRepo, hub)
	noteUsecase := usecase.NewNoteUsecase(noteRepo, projectRepo, hub)
	npsUsecase := usecase.NewNpsUsecase(npsRepo, projectRepo, hub)
	healthUsecase := usecase.NewHealthUsecase(db, hub.ConnectedCount)

	app := fiber.New(fiber.Config{
		AppName:               "fluxo",
		DisableStartupMessage: false,
		Network:               "tcp",
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	api := app.Group(cfg.App.BasePath)

	// Basic auth guards the staff API. The websocket upgrade, the health
	// check and the tokenized portal link authorize on their own terms.
	api.Use(basicauth.New(basicauth.Config{
		Users: account,
		Next: func(c *fiber.Ctx) bool {
			if c.Method() == fiber.MethodOptions {
				return true
			}
			path := strings.TrimPrefix(c.Path(), cfg.App.BasePath)
			return path == "/ws" || path == "/health" || strings.HasPrefix(path, "/portal/")
		},
	}))

	// The websocket upgrade authorizes via token query parameter, since
	// browsers cannot set headers on websocket dials.
	hub.RegisterRoutes(api, func(token string) bool {
		ba := strings.SplitN(token, ":", 2)
		if len(ba) != 2 {
			return false
		}
		secret, ok := account[ba[0]]
		return ok && secret == ba[1]
	})

	rest.InitRestHealth(api, healthUsecase)
	rest.InitRestProject(api, projectUsecase)
	rest.InitRestEngagement(api, commentUsecase, noteUsecase, npsUsecase)

	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.ShutdownWithContext(shutdownCtx)
	}()

	logrus.Infof("Starting fluxo %s on port %s", cfg.App.Version, cfg.App.Port)
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalf("Server stopped: %v", err)
	}
}
