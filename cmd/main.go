package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"riskexecutor/cmd/executor"
	"riskexecutor/src/security"
)

var Version string

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()

	app := cli.NewApp()
	app.Name = "riskexecutor"
	app.Usage = "Signal-driven equities order and risk engine"
	app.Version = Version

	app.Commands = []cli.Command{
		engineCMD,
		hashTokenCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	engineCMD = cli.Command{
		Name:        "engine",
		Usage:       "run the scan, risk and short cycles",
		Action:      engineAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Connects to the order bridge and market feed, then runs until SIGINT or SIGTERM`,
	}
	hashTokenCMD = cli.Command{
		Name:        "hash-token",
		Usage:       "print the bcrypt hash for OPERATOR_TOKEN_HASH",
		Action:      hashTokenAction,
		ArgsUsage:   "[token]",
		Description: `Reads the token from the first argument or, when absent, from stdin`,
	}
)

func engineAction(_ *cli.Context) error {
	logrus.Info("Starting engine CMD")

	e := &executor.Executor{Log: logrus.WithField("cmd", "engine")}
	if err := e.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func hashTokenAction(c *cli.Context) error {
	token := c.Args().First()
	if token == "" {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no token given")
		}
		token = line
	}

	hash, err := security.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
