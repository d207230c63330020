package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/akeil/notemd"
)

func doLs(s settings, notebook string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := setupClient(ctx, s)
	if err != nil {
		return err
	}

	if notebook == "" {
		nbs, err := client.Notebooks(ctx)
		if err != nil {
			return err
		}
		if len(nbs) == 0 {
			fmt.Println("Found no notebooks.")
			return nil
		}
		fmt.Println("Notebooks")
		fmt.Println("---------")
		for _, nb := range nbs {
			fmt.Println(nb.Name)
		}
		return nil
	}

	nb, err := client.FindNotebook(ctx, notebook)
	if err != nil {
		return err
	}

	sections, err := client.Sections(ctx, nb.ID)
	if err != nil {
		return err
	}

	fmt.Println(nb.Name)
	for _, sec := range sections {
		fmt.Printf("+ %v\n", sec.Name)

		pages, err := client.Pages(ctx, sec.ID)
		if err != nil {
			return err
		}
		tree, warnings := notemd.BuildTree(sec, pages)
		for _, w := range warnings {
			fmt.Printf("  %v %v\n", crossmark, w)
		}
		showTree(tree)
	}

	return nil
}

func showTree(tree *notemd.PageTree) {
	var show func(n *notemd.PageNode, level int)
	show = func(n *notemd.PageNode, level int) {
		for i := 0; i < level; i++ {
			fmt.Print("  ")
		}
		fmt.Printf("- %v\n", n.Page.Title)
		for _, c := range n.Children {
			show(c, level+1)
		}
	}
	for _, r := range tree.Roots {
		show(r, 1)
	}
}
