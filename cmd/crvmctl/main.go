package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cascoin/crvm/cmd/cli"
)

func main() {
	reqID := uuid.New()
	log := logrus.WithField("request_id", reqID.String())

	rootCmd := &cobra.Command{Use: "crvmctl", Short: "CRVM node operator CLI"}
	rootCmd.AddCommand(cli.QueryCmd())
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
