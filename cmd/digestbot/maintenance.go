package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-chat-digest/internal/repo"
	"github.com/tbourn/go-chat-digest/internal/services"
)

func cleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired cache entries and idempotency records once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStore(opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close(db) }()

			cache := services.NewResultCache(db, opts.cfg.Failure.CacheFailClosed)
			n, err := newSweeper(opts.cfg, db, cache, nil).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired cache entries\n", n)
			return nil
		},
	}
}

func statsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print stored chat and cache counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStore(opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close(db) }()

			st, err := (&services.MessageService{DB: db}).Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			fmt.Fprintf(out, "chats:                %d\n", st.Chats)
			fmt.Fprintf(out, "messages:             %d\n", st.Messages)
			fmt.Fprintf(out, "active cache entries: %d\n", st.ActiveCacheEntries)
			if st.LastMessageAt != nil {
				fmt.Fprintf(out, "last message at:      %s\n", st.LastMessageAt.In(opts.cfg.Location()).Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
