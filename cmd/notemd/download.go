package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/akeil/notemd/pkg/export"
)

func doDownload(s settings, notebook, section, outDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := setupClient(ctx, s)
	if err != nil {
		return err
	}

	fmt.Printf("%v download %q\n", ellipsis, notebook)

	exp := export.NewExporter(client, outDir)
	summary, err := exp.Run(ctx, notebook, section)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed() {
		return fmt.Errorf("completed with failures")
	}

	fmt.Printf("%v notebook %q saved to %q\n", checkmark, notebook, outDir)
	return nil
}

func printSummary(s *export.Summary) {
	for _, r := range s.Sections {
		fmt.Printf("Section %q\n", r.Section.Name)
		if r.Err != nil {
			fmt.Printf("  %v section failed: %v\n", crossmark, r.Err)
			continue
		}
		for _, w := range r.Warnings {
			fmt.Printf("  %v %v\n", crossmark, w)
		}
		for _, p := range r.Pages {
			switch {
			case p.Pending:
				fmt.Printf("  %v %v (pending)\n", ellipsis, p.Page.Title)
			case p.Err != nil:
				fmt.Printf("  %v %v: %v\n", crossmark, p.Page.Title, p.Err)
			default:
				fmt.Printf("  %v %v\n", checkmark, p.Page.Title)
			}
		}
		if r.AssetsFailed > 0 {
			fmt.Printf("  %v %d assets could not be fetched\n", crossmark, r.AssetsFailed)
		}
	}

	fmt.Printf("\n%d pages converted, %d failed, %d pending.\n",
		s.PagesDone, s.PagesFailed, s.PagesPending)
}
