/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskhive/apiserver/config"
	"github.com/taskhive/apiserver/internal/db"
	"github.com/taskhive/apiserver/internal/mq"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/store"
)

// remindCmd scans for tasks coming due and publishes one reminder event
// per task to the configured broker. Meant to run on a schedule (cron).
var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Publish reminder events for tasks coming due",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer func() {
			_ = dbConn.Close()
		}()

		queue, err := newBroker(cmd, cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = queue.Close()
		}()

		window := time.Duration(cfg.Reminder.WindowHours) * time.Hour
		reminders := services.NewReminderService(
			store.NewTaskRepository(dbConn),
			queue,
			cfg.Reminder.Channel,
			window,
		)

		published, err := reminders.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "published %d reminder(s)\n", published)
		return nil
	},
}

// remindListenCmd consumes reminder events from the broker and logs
// them. Runs until interrupted.
var remindListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Consume reminder events from the broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		queue, err := newBroker(cmd, cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = queue.Close()
		}()

		window := time.Duration(cfg.Reminder.WindowHours) * time.Hour
		reminders := services.NewReminderService(nil, queue, cfg.Reminder.Channel, window)
		return reminders.Listen(cmd.Context())
	},
}

func newBroker(cmd *cobra.Command, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.MQ.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(cmd.Context(), cfg.MQ.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "":
		return nil, errors.New("MQ_BACKEND is required for reminders")
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

func init() {
	rootCmd.AddCommand(remindCmd)
	remindCmd.AddCommand(remindListenCmd)
}
