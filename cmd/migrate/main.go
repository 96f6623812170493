package main

import (
	"fmt"
	"os"

	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/storage"
)

// migrate applies every pending schema migration and exits. It is the
// container entrypoint run before the api and worker start; cartctl migrate
// offers stepwise control.
func main() {
	envs, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := obs.NewLogger(envs.String("OBS_LOG_FORMAT", "json"), envs.String("OBS_LOG_LEVEL", "info")).
		With().Str("component", "migrate").Logger()

	m, err := storage.NewMigrator(envs.String("DATABASE_URL", ""))
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise migrator")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Error().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrator")
		}
	}()

	if err := storage.Up(m); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	version, dirty, err := m.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("read schema version")
		return
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema up to date")
}
