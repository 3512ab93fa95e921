package main

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kalambet/shuttle/internal/aggregate"
	"github.com/kalambet/shuttle/internal/attachment"
	"github.com/kalambet/shuttle/internal/config"
	"github.com/kalambet/shuttle/internal/inbox"
	"github.com/kalambet/shuttle/internal/session"
)

// --- share ---

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Share content into the inbox",
	Long: `Run a producer session: aggregate the given content into one record,
deposit it in the shared inbox, and wake the consumer. Works whether or
not the consumer is running.

Examples:
  shuttle share --url https://example.com/article --caption "read later"
  shuttle share --text "pick up milk"
  shuttle share --file ./photo.jpg --file ./page.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		caption, _ := cmd.Flags().GetString("caption")
		urls, _ := cmd.Flags().GetStringArray("url")
		texts, _ := cmd.Flags().GetStringArray("text")
		files, _ := cmd.Flags().GetStringArray("file")

		if caption == "" && len(urls) == 0 && len(texts) == 0 && len(files) == 0 {
			return fmt.Errorf("one of --caption, --url, --text, or --file is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		items := make([]attachment.Provider, 0, len(urls)+len(texts)+len(files))
		for _, u := range urls {
			items = append(items, &attachment.LinkItem{Raw: u})
		}
		for _, t := range texts {
			items = append(items, &attachment.TextItem{Text: t})
		}
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			items = append(items, &attachment.FileItem{
				Name:        filepath.Base(path),
				ContentType: mime.TypeByExtension(filepath.Ext(path)),
				Data:        data,
			})
		}

		// The session absorbs an unavailable container; it still answers.
		var writer session.RecordWriter
		var payloads aggregate.PayloadSaver
		in, err := inbox.Open(cfg.Inbox.ContainerDir)
		if err != nil {
			slog.Warn("shared container unavailable", "dir", cfg.Inbox.ContainerDir, "error", err)
		} else {
			writer = in
			payloads = in
		}

		sess := session.New(aggregate.New(payloads), writer, wakeTrigger(cfg)).WithTimeout(cfg.Share.Timeout())
		res := sess.Run(cmd.Context(), caption, items, nil)

		if res.EntryID == "" {
			printWarning("Shared %q but it did not reach the inbox", res.Record.Title)
			return nil
		}
		printSuccess("Shared %q as inbox entry %s", res.Record.Title, res.EntryID)
		return nil
	},
}

func init() {
	shareCmd.Flags().String("caption", "", "caption for the shared content")
	shareCmd.Flags().StringArray("url", nil, "URL to share (repeatable)")
	shareCmd.Flags().StringArray("text", nil, "text to share (repeatable)")
	shareCmd.Flags().StringArray("file", nil, "file path to share (repeatable)")
}

// --- inbox ---

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List inbox entries not yet imported",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/inbox")
		if err != nil {
			return err
		}

		var result struct {
			Pending []string `json:"pending"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Pending) == 0 {
			fmt.Println("Inbox is empty.")
			return nil
		}
		for _, id := range result.Pending {
			fmt.Println(colorize(colorCyan, id))
		}
		return nil
	},
}

// --- items ---

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List imported items",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/items?limit=%d", limit))
		if err != nil {
			return err
		}

		var items []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Subtitle  string `json:"subtitle"`
			URL       string `json:"url"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No items found.")
			return nil
		}
		for _, it := range items {
			line := fmt.Sprintf("%s  %s", it.CreatedAt, colorize(colorBold, it.Title))
			if it.Subtitle != "" {
				line += "  " + it.Subtitle
			}
			fmt.Println(line)
			if it.URL != "" {
				fmt.Printf("    %s\n", it.URL)
			}
		}
		return nil
	},
}

func init() {
	itemsCmd.Flags().Int("limit", 20, "maximum number of items to list")
}

// --- wake ---

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Nudge the consumer to drain the inbox now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/wake", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Import triggered")
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show shuttle system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		printStatus("Inbox dir", "%s", cfg.Inbox.ContainerDir)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)

		client, err := newAPIClient()
		if err != nil {
			printStatus("Server", "not reachable (%v)", err)
			return nil
		}

		resp, err := client.get(cmd.Context(), "/status")
		if err != nil {
			printStatus("Server", "stopped")
			return nil
		}

		var st struct {
			State    string `json:"state"`
			LastSync string `json:"last_sync"`
			Online   bool   `json:"online"`
			Error    string `json:"error"`
		}
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}

		printStatus("Server", "running on port %d", cfg.Server.Port)
		printStatus("Sync state", "%s", st.State)
		if st.LastSync != "" {
			printStatus("Last sync", "%s", st.LastSync)
		}
		if st.Error != "" {
			printStatus("Last error", "%s", st.Error)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
