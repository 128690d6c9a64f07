package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ipfsnut/everd/internal/config"
)

type evermarkJSON struct {
	TokenID     int64  `json:"tokenId"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	ContentType string `json:"contentType"`
	SourceURL   string `json:"sourceUrl"`
	IPFSHash    string `json:"ipfsHash"`
	MintTx      string `json:"mintTxHash"`
	Status      string `json:"processingStatus"`
	CreatedAt   string `json:"createdAt"`
}

// --- save ---

var saveCmd = &cobra.Command{
	Use:   "save <url>",
	Short: "Preserve a URL in the archive",
	Long: `Preserve a URL in the archive.

Examples:
  everd save https://example.com/article
  everd save https://warpcast.com/user/0x1a2b3c4d
  everd save https://doi.org/10.1234/example
  everd save --fid 3 https://arxiv.org/abs/1234.5678.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fid, _ := cmd.Flags().GetInt64("fid")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"url": args[0]}
		if fid != 0 {
			req["userFid"] = fid
		}

		resp, err := client.post(cmd.Context(), "/api/evermarks", req)
		if err != nil {
			return err
		}

		var result struct {
			TokenID  int64  `json:"tokenId"`
			Status   string `json:"status"`
			IPFSHash string `json:"ipfsHash"`
			Metadata struct {
				Title       string `json:"title"`
				ContentType string `json:"contentType"`
			} `json:"metadata"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Saved %q as token %d", result.Metadata.Title, result.TokenID)
		printStatus("Type", "%s", result.Metadata.ContentType)
		printStatus("Status", "%s", result.Status)
		if result.IPFSHash != "" {
			printStatus("IPFS", "%s", result.IPFSHash)
		}
		return nil
	},
}

func init() {
	saveCmd.Flags().Int64("fid", 0, "Farcaster id to attribute the save to")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search preserved content",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/evermarks/search?q=%s&limit=%d", url.QueryEscape(query), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var out struct {
			Evermarks []evermarkJSON `json:"evermarks"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		if len(out.Evermarks) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		printEvermarks(out.Evermarks)
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 10, "maximum number of results")
}

// --- recent ---

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent saves",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		page, _ := cmd.Flags().GetInt("page")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/evermarks?page=%d&limit=%d", page, limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var out struct {
			Evermarks  []evermarkJSON `json:"evermarks"`
			Pagination struct {
				Page       int `json:"page"`
				Total      int `json:"total"`
				TotalPages int `json:"totalPages"`
			} `json:"pagination"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		if len(out.Evermarks) == 0 {
			fmt.Println("The archive is empty.")
			return nil
		}

		printEvermarks(out.Evermarks)
		fmt.Printf("\nPage %d of %d (%d total)\n", out.Pagination.Page, out.Pagination.TotalPages, out.Pagination.Total)
		return nil
	},
}

func init() {
	recentCmd.Flags().Int("limit", 10, "results per page")
	recentCmd.Flags().Int("page", 1, "page number")
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats <fid>",
	Short: "Show archive statistics for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/users/"+args[0]+"/stats")
		if err != nil {
			return err
		}

		var stats struct {
			TotalSaves int    `json:"totalSaves"`
			ThisMonth  int    `json:"thisMonth"`
			TagsUsed   int    `json:"tagsUsed"`
			TopDomain  string `json:"topDomain"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Total saves", "%d", stats.TotalSaves)
		printStatus("This month", "%d", stats.ThisMonth)
		printStatus("Tags used", "%d", stats.TagsUsed)
		if stats.TopDomain != "" {
			printStatus("Top domain", "%s", stats.TopDomain)
		}
		return nil
	},
}

// --- collections ---

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List tag collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/collections")
		if err != nil {
			return err
		}

		var out struct {
			Collections map[string]int `json:"collections"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		if len(out.Collections) == 0 {
			fmt.Println("No collections yet.")
			return nil
		}

		for name, count := range out.Collections {
			fmt.Printf("  %s (%d)\n", colorize(colorBold, name), count)
		}
		return nil
	},
}

func printEvermarks(items []evermarkJSON) {
	for _, e := range items {
		title := e.Title
		if len(title) > 80 {
			title = title[:80] + "..."
		}
		fmt.Printf("%s  %s  %s\n",
			colorize(colorCyan, fmt.Sprintf("#%d", e.TokenID)),
			colorize(colorBold, title),
			e.ContentType,
		)
		fmt.Printf("      %s\n", e.SourceURL)
		if e.IPFSHash != "" {
			fmt.Printf("      ipfs://%s\n", e.IPFSHash)
		}
	}
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
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
