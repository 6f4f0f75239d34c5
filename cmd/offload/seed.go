package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/offload/product"
)

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace the product catalog with sample products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			products, closeProducts, err := openProducts(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer func() { _ = closeProducts() }()

			n, err := product.Seed(ctx, products, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully created %d products!\n", n)
			return nil
		},
	}
}
