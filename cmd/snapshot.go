package main

import (
	"fmt"
	"os"

	"browserPilot/internal/config"
	"browserPilot/internal/dom"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSnapshotCmd() *cobra.Command {
	var (
		width, height float64
		expansion     int
		highlight     bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot <file.html>",
		Short: "Показать снимок страницы из HTML-файла так, как его видит модель",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("ошибка открытия файла: %w", err)
			}
			defer f.Close()

			doc, err := dom.ParseHTML(f, dom.Rect{Width: width, Height: height})
			if err != nil {
				return err
			}

			opts := domOptions(config.DOM{HighlightElements: highlight, ViewportExpansion: expansion})
			if err := opts.Validate(); err != nil {
				return err
			}
			snap := dom.NewBuilder(opts, zap.NewNop()).Build(doc)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, snap.Render(opts.IncludedAttributes))
			fmt.Fprintf(out, "\nэлементов: %d, обойдено узлов: %d, за %d мс\n", snap.Count, snap.Stats.Visited, snap.Stats.ElapsedMs)
			for _, msg := range snap.Stats.Failures {
				fmt.Fprintf(out, "ошибка обхода: %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&width, "width", 1280, "ширина окна")
	cmd.Flags().Float64Var(&height, "height", 720, "высота окна")
	cmd.Flags().IntVar(&expansion, "viewport-expansion", 0, "расширение окна в пикселях, -1 без ограничения")
	cmd.Flags().BoolVar(&highlight, "highlight", false, "строить рамки подсветки")
	return cmd
}
