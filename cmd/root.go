/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/core/status"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
	httpEngine "github.com/nuts-foundation/ebsi-issuer/http"
	httpCmd "github.com/nuts-foundation/ebsi-issuer/http/cmd"
	"github.com/nuts-foundation/ebsi-issuer/storage"
	storageCmd "github.com/nuts-foundation/ebsi-issuer/storage/cmd"
	"github.com/nuts-foundation/ebsi-issuer/vcr"
	openid4vciAPI "github.com/nuts-foundation/ebsi-issuer/vcr/api/openid4vci/v0"
	statusListAPI "github.com/nuts-foundation/ebsi-issuer/vcr/api/statuslist/v0"
	vcrCmd "github.com/nuts-foundation/ebsi-issuer/vcr/cmd"
	"github.com/nuts-foundation/ebsi-issuer/vdr"
	vdrCmd "github.com/nuts-foundation/ebsi-issuer/vdr/cmd"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var stdOutWriter io.Writer = os.Stdout

func createRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "issuer",
		Short: "EBSI credential issuer, which can be used to run the issuer server or administer a remote issuer.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}
}

func createPrintConfigCommand(system *core.System) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the current config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := system.Load(cmd); err != nil {
				return err
			}
			cmd.Println("Current system config")
			cmd.Println(system.Config.PrintConfig())
			return nil
		},
	}
}

func createServerCommand(system *core.System) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Starts the credential issuer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := system.Load(cmd); err != nil {
				return err
			}
			return startServer(cmd.Context(), system)
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(core.BuildInfo())
		},
	}
}

func startServer(ctx context.Context, system *core.System) error {
	logrus.Infof("Build info: \n%s", core.BuildInfo())
	logrus.Infof("Config: \n%s", system.Config.PrintConfig())

	// check config on all engines
	if err := system.Configure(); err != nil {
		return err
	}

	// register HTTP routes
	httpServer, ok := system.FindEngineByName(httpEngine.ModuleName).(*httpEngine.Engine)
	if !ok {
		return errors.New("HTTP engine is not registered")
	}
	system.VisitEngines(func(engine core.Engine) {
		if router, ok := engine.(core.Routable); ok {
			router.Routes(httpServer.Router())
		}
	})
	for _, router := range system.Routers {
		router.Routes(httpServer.Router())
	}

	// start engines
	if err := system.Start(); err != nil {
		return err
	}
	logrus.Info("System started, waiting for shutdown...")
	<-ctx.Done()
	logrus.Info("Shutting down...")
	if err := system.Shutdown(); err != nil {
		logrus.WithError(err).Error("Error shutting down system")
		return err
	}
	logrus.Info("Shutdown complete. Goodbye!")
	return nil
}

// CreateCommand creates the command with all subcommands to run the system.
func CreateCommand(system *core.System) *cobra.Command {
	command := createRootCommand()
	command.SetOut(stdOutWriter)
	addSubCommands(system, command)
	return command
}

// CreateSystem creates the system and registers all default engines.
// The shutdownCallback is called when the HTTP server stops unexpectedly, which stops the system.
func CreateSystem(shutdownCallback context.CancelFunc) *core.System {
	system := core.NewSystem()

	// Create instances
	metricsInstance := core.NewMetricsEngine()
	statusInstance := status.NewStatusEngine(system)
	storageInstance := storage.New()
	vdrInstance := vdr.NewVDR()
	vcrInstance := vcr.NewVCRInstance(storageInstance, func() crypto.KeyResolver {
		return vdrInstance.KeyResolver()
	})
	httpServerInstance := httpEngine.New(shutdownCallback)

	// Register HTTP routes
	system.RegisterRoutes(&openid4vciAPI.Wrapper{VCR: vcrInstance})
	system.RegisterRoutes(&statusListAPI.Wrapper{VCR: vcrInstance})

	// Register engines
	// without dependencies
	system.RegisterEngine(metricsInstance)
	system.RegisterEngine(statusInstance)
	system.RegisterEngine(storageInstance)
	// with dependencies
	system.RegisterEngine(vdrInstance)
	system.RegisterEngine(vcrInstance)
	// HTTP engine MUST be registered last, because when started it dispatches HTTP calls to the registered routes.
	// Registering it last makes sure all engines are started and ready to accept requests.
	system.RegisterEngine(httpServerInstance)

	return system
}

// Execute executes the root command, which runs the server or one of the client commands.
func Execute(ctx context.Context, system *core.System) error {
	command := CreateCommand(system)
	command.SetOut(stdOutWriter)
	return command.ExecuteContext(ctx)
}

func addSubCommands(system *core.System, root *cobra.Command) {
	serverCommand := createServerCommand(system)
	addFlagSets(serverCommand)
	root.AddCommand(serverCommand)

	configCommand := createPrintConfigCommand(system)
	addFlagSets(configCommand)
	root.AddCommand(configCommand)

	root.AddCommand(createVersionCommand())
	root.AddCommand(status.Cmd())
	root.AddCommand(vcrCmd.Cmd())

	vdrCommand := vdrCmd.Cmd(system, system.FindEngineByName(vdr.ModuleName).(*vdr.Module))
	addFlagSets(vdrCommand)
	root.AddCommand(vdrCommand)
}

func addFlagSets(cmd *cobra.Command) {
	for _, flagSet := range serverFlagSets() {
		cmd.PersistentFlags().AddFlagSet(flagSet)
	}
}

func serverFlagSets() []*pflag.FlagSet {
	return []*pflag.FlagSet{
		core.FlagSet(),
		httpCmd.FlagSet(),
		storageCmd.FlagSet(),
		vdrCmd.FlagSet(),
		vcrCmd.FlagSet(),
	}
}
