package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/smartstudy-abroad/smartstudy/internal/chat"
	"github.com/smartstudy-abroad/smartstudy/internal/logger"
)

const promptExit = "exit"

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Chat with the study-abroad assistant in the terminal",
	Run: func(_ *cobra.Command, _ []string) {
		ask()
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func ask() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	generator, _, err := newAI(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("creating the ai backend", zap.Error(err))
	}
	assistant := chat.New(generator, config.AI.Timeout, logger)

	prompt := promptui.Prompt{
		Label: fmt.Sprintf("Ask (%q to quit)", promptExit),
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("message is required")
			}
			return nil
		},
	}

	for {
		message, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			logger.Fatal("reading prompt", zap.Error(err))
		}
		if strings.EqualFold(strings.TrimSpace(message), promptExit) {
			return
		}

		reply, err := assistant.Reply(ctx, message)
		if err != nil {
			logger.Warn("no reply", zap.Error(err))
			continue
		}
		fmt.Println(reply)
	}
}
