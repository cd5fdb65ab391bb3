package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pickrelay/internal/store"
	"github.com/tonimelisma/pickrelay/internal/telegram"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect which items were already delivered",
	}

	cmd.AddCommand(newLedgerCountCmd())
	cmd.AddCommand(newLedgerListCmd())

	return cmd
}

func newLedgerCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count delivered items (per channel, or for --channel)",
		RunE:  runLedgerCount,
	}
}

func newLedgerListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent deliveries to --channel",
		RunE:  runLedgerList,
	}

	cmd.Flags().Int("limit", 50, "maximum number of entries")

	return cmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	return store.Open(cmd.Context(), resolvedCfg.StateDBPath(), buildLogger())
}

func runLedgerCount(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()

	if resolvedCfg.Telegram.ChannelID != "" {
		chat, err := telegram.ParseChatID(resolvedCfg.Telegram.ChannelID)
		if err != nil {
			return err
		}

		n, err := st.Ledger(ledgerKey(chat)).Count(ctx)
		if err != nil {
			return err
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]int{ledgerKey(chat): n})
		}

		fmt.Println(n)

		return nil
	}

	dests, err := st.Destinations(ctx)
	if err != nil {
		return err
	}

	if flagJSON {
		out := make(map[string]int, len(dests))
		for _, d := range dests {
			out[d.Destination] = d.Items
		}

		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(dests) == 0 {
		statusf("No deliveries recorded.\n")
		return nil
	}

	rows := make([][]string, 0, len(dests))
	for _, d := range dests {
		rows = append(rows, []string{d.Destination, strconv.Itoa(d.Items)})
	}

	printTable(os.Stdout, []string{"CHANNEL", "ITEMS"}, rows)

	return nil
}

// ledgerEntryJSON is the JSON schema for `ledger list --json`.
type ledgerEntryJSON struct {
	ItemID string `json:"item_id"`
	DoneAt string `json:"done_at"`
}

func runLedgerList(cmd *cobra.Command, _ []string) error {
	if resolvedCfg.Telegram.ChannelID == "" {
		return errors.New("ledger list needs --channel or telegram.channel_id")
	}

	chat, err := telegram.ParseChatID(resolvedCfg.Telegram.ChannelID)
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := st.Ledger(ledgerKey(chat)).List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if flagJSON {
		out := make([]ledgerEntryJSON, 0, len(items))
		for _, it := range items {
			out = append(out, ledgerEntryJSON{ItemID: it.ItemID, DoneAt: it.DoneAt.Format(time.RFC3339)})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{formatTime(it.DoneAt), it.ItemID})
	}

	printTable(os.Stdout, []string{"SENT", "ITEM"}, rows)

	return nil
}
