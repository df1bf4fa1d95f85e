package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Bumper invalidates cached upstream responses.
type Bumper interface {
	Bump(ctx context.Context) error
	Version(ctx context.Context) (int64, error)
}

// NewCacheCommand builds the "cache" command tree.
func NewCacheCommand(open func(ctx context.Context) (Bumper, func(), error)) *cobra.Command {
	root := &cobra.Command{
		Use:   "cache",
		Short: "Manage the upstream response cache",
	}
	bump := &cobra.Command{
		Use:   "bump",
		Short: "Invalidate every cached upstream response on all replicas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, closeFn, err := open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := cache.Bump(ctx); err != nil {
				return fmt.Errorf("cache bump: %w", err)
			}
			ver, err := cache.Version(ctx)
			if err != nil {
				return fmt.Errorf("cache version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache version %d\n", ver)
			return nil
		},
	}
	root.AddCommand(bump)
	return root
}
