package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hexfoundry/herald/internal/account"
	"github.com/hexfoundry/herald/internal/message"
	"github.com/hexfoundry/herald/internal/timezone"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Broadcast message commands",
	}

	cmd.AddCommand(newMessageCreateCmd())
	cmd.AddCommand(newMessageListCmd())
	cmd.AddCommand(newMessageStatsCmd())
	cmd.AddCommand(newMessageRetryCmd())
	cmd.AddCommand(newMessageRetryAllCmd())
	cmd.AddCommand(newMessageDeleteCmd())
	return cmd
}

func newMessageCreateCmd() *cobra.Command {
	var (
		configPath string
		title      string
		from       string
		at         string
	)

	cmd := &cobra.Command{
		Use:   "create <body>",
		Short: "Queue a broadcast message",
		Long: `Queues a broadcast message for delivery. Without --at it goes out on
the next poll cycle; with --at it waits for the scheduled local time
(config timezone), e.g. --at "2026-01-15T09:00".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageCreate(cmd, configPath, title, from, at, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	cmd.Flags().StringVar(&title, "title", "", "optional message title")
	cmd.Flags().StringVar(&from, "from", "", "chat id of the sending account (required)")
	cmd.Flags().StringVar(&at, "at", "", "scheduled local time, e.g. 2026-01-15T09:00")
	cmd.MarkFlagRequired("from")
	return cmd
}

func runMessageCreate(cmd *cobra.Command, configPath, title, from, at, body string) error {
	out := cmd.OutOrStdout()

	cfg, gdb, err := openFromConfig(configPath)
	if err != nil {
		return err
	}
	sender, err := account.ByChannel(gdb, from)
	if err != nil {
		return err
	}

	zones := timezone.NewZoneCache(0)
	loc, err := zones.Get(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}

	v := timezone.ValidateScheduledTime(at, loc, time.Now())
	if !v.OK {
		return fmt.Errorf("scheduling: %s", v.Reason)
	}
	opts := message.CreateOpts{
		Title:     title,
		Body:      body,
		SenderID:  sender.ID,
		MaxLength: cfg.Messages.MaxLength,
	}
	if !v.Immediate {
		opts.ScheduledFor = &v.At
	}

	msg, err := message.Create(gdb, opts)
	if err != nil {
		return err
	}
	if v.Immediate {
		fmt.Fprintf(out, "Message #%d queued for the next delivery cycle.\n", msg.ID)
		return nil
	}
	if v.Warning != "" {
		fmt.Fprintf(out, "Note: %s\n", v.Warning)
	}
	fmt.Fprintf(out, "Message #%d scheduled, delivery in %s.\n", msg.ID, v.Until)
	return nil
}

func newMessageListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List broadcast messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageList(cmd, configPath, status, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	cmd.Flags().StringVar(&status, "status", "", "filter: sent, failed, or pending")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to show")
	return cmd
}

func runMessageList(cmd *cobra.Command, configPath, status string, limit int) error {
	out := cmd.OutOrStdout()

	_, gdb, err := openFromConfig(configPath)
	if err != nil {
		return err
	}
	msgs, err := message.List(gdb, message.ListFilters{Status: status, Limit: limit})
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(out, "No messages.")
		return nil
	}
	for _, m := range msgs {
		state := "pending"
		switch {
		case m.Sent:
			state = "sent"
		case m.Failed():
			state = "failed: " + *m.ErrorMessage
		}
		when := "immediate"
		if m.ScheduledFor != nil {
			when = m.ScheduledFor.UTC().Format("2006-01-02 15:04") + " UTC"
		}
		fmt.Fprintf(out, "#%d\t%s\t%s\t%s\n", m.ID, when, state, m.Body)
	}
	return nil
}

func newMessageStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show message delivery statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			loc, err := timezone.NewZoneCache(0).Get(cfg.Timezone)
			if err != nil {
				return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
			}
			s, err := message.ComputeStats(gdb, time.Now(), loc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Summary())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	return cmd
}

func newMessageRetryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Queue one unsent message for immediate redelivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("message id must be numeric, got %q", args[0])
			}
			_, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := message.Retry(gdb, uint(id), time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message #%d queued for the next delivery cycle.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	return cmd
}

func newMessageRetryAllCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "retry-all",
		Short: "Queue every failed message for redelivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			n, err := message.RetryAll(gdb, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %d message(s) for redelivery.\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	return cmd
}

func newMessageDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a broadcast message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("message id must be numeric, got %q", args[0])
			}
			_, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := message.Delete(gdb, uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted message #%d.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	return cmd
}
