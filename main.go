package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"

	"github.com/pwless/pwless/config"
	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/logger"
	"github.com/pwless/pwless/provider"
	"github.com/pwless/pwless/web"
	"github.com/pwless/pwless/web/service"
)

func initLogger() {
	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Notice:
		logger.InitLogger(logging.NOTICE)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())
	initLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := database.InitDB(cfg.Database); err != nil {
		log.Fatal(err)
	}

	client := provider.NewBitwardenClient(cfg.Provider)

	server := web.NewServer(cfg, client)
	if err := server.Start(); err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer(cfg, client)
			if err := server.Start(); err != nil {
				log.Println(err)
				return
			}
		default:
			_ = server.Stop()
			return
		}
	}
}

// initDatabase migrates the schema, seeds the default roles and optionally
// creates a first pre-authorized admin user.
func initDatabase(adminUsername, adminDisplayName, adminEmail string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := database.InitDB(cfg.Database); err != nil {
		fmt.Println("init database failed:", err)
		return
	}
	fmt.Println("database initialized")

	if adminUsername == "" {
		return
	}
	userService := service.UserService{DB: database.GetDB()}
	user, err := userService.CreateUser(service.CreateUserParams{
		Username:    adminUsername,
		DisplayName: adminDisplayName,
		Email:       adminEmail,
		RoleName:    model.RoleAdmin,
		CreatedBy:   "init",
	})
	if err != nil {
		fmt.Println("create admin user failed:", err)
		return
	}
	fmt.Printf("created admin user %s (%s), register a passkey to sign in\n", user.Username, user.ID)
}

func main() {
	var rootCmd = &cobra.Command{
		Use: "pwless",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the database schema and default roles",
		Run: func(cmd *cobra.Command, args []string) {
			adminUsername, _ := cmd.Flags().GetString("admin-username")
			adminDisplayName, _ := cmd.Flags().GetString("admin-display-name")
			adminEmail, _ := cmd.Flags().GetString("admin-email")
			initDatabase(adminUsername, adminDisplayName, adminEmail)
		},
	}

	initCmd.Flags().String("admin-username", "", "create a pre-authorized admin user")
	initCmd.Flags().String("admin-display-name", "", "display name of the admin user")
	initCmd.Flags().String("admin-email", "", "primary email of the admin user")

	rootCmd.AddCommand(runCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
