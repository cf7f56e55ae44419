package main

import (
	"context"

	"github.com/spf13/cobra"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles [path]",
	Short: "Preview the tiling plan for a drawing",
	Long: `Renders the document and prints the tile grid each page would be cut
into, without calling the extraction model. Useful for picking tile
dimensions and overlap before running a large batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runTiles,
}

func init() {
	rootCmd.AddCommand(tilesCmd)
}

func runTiles(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	tiler, err := newTiler()
	if err != nil {
		return err
	}

	doc, err := newLoader().LoadDocument(ctx, args[0])
	if err != nil {
		return err
	}

	for _, page := range doc.Pages {
		img, err := page.Image()
		if err != nil {
			cmd.Printf("page %d: %v\n", page.Number, err)
			continue
		}
		b := img.Bounds()
		plan := tiler.Plan(b.Dx(), b.Dy())
		cmd.Printf("page %d: %dx%d px, %d tile(s)\n", page.Number, b.Dx(), b.Dy(), len(plan))
		for _, t := range plan {
			cmd.Printf("  [%d,%d] %s %dx%d\n", t.Row, t.Col, t.Box, t.Box.Width(), t.Box.Height())
		}
	}
	return nil
}
