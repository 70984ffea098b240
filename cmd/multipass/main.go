package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	var (
		flagConfig  = ""
		flagEnvFile = ".env"
	)

	root := &cobra.Command{
		Use:   "multipass",
		Short: "Authorization server OAuth 2.0 multi-tenant",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env es opcional; si no existe seguimos con el entorno real
			if flagEnvFile != "" {
				_ = godotenv.Load(flagEnvFile)
			}
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", flagConfig, "ruta a config.yaml (fallback: $CONFIG_PATH, luego defaults)")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", flagEnvFile, "ruta a .env (si existe, se carga)")

	root.AddCommand(newServeCmd(&flagConfig))
	root.AddCommand(newMigrateCmd(&flagConfig))
	root.AddCommand(newSeedCmd(&flagConfig))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
