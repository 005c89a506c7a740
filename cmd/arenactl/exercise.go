package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joshuapare/arenakit/arena"
	"github.com/joshuapare/arenakit/internal/osmem"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newExerciseCmd())
	rootCmd.AddCommand(newNumaCmd())
}

func newExerciseCmd() *cobra.Command {
	var (
		sizeMiB uint
		rounds  int
		purge   bool
	)
	cmd := &cobra.Command{
		Use:   "exercise",
		Short: "Run allocation/free/purge cycles against a fresh arena",
		Long: `Exercise reserves an uncommitted arena, then repeatedly allocates,
touches and frees block runs, forcing a purge pass between rounds. Useful
as an end-to-end smoke test of commit, decommit and the claim bitmaps.

Example:
  arenactl exercise --size 256 --rounds 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := arena.DefaultOptions()
			opts.PurgeDelay = 50 * time.Millisecond
			opts.ResetDecommits = purge
			m := arena.NewManager(osmem.New(), osmem.NewClock(), opts)

			id, err := m.ReserveOSMemory(uintptr(sizeMiB)<<20, false, false, false)
			if err != nil {
				return fmt.Errorf("reserve failed: %w", err)
			}
			slog.Debug("reserved arena", "id", id)

			for r := 0; r < rounds; r++ {
				alloc, err := m.Alloc(2*arena.BlockSize, true, false, arena.None)
				if err != nil {
					return fmt.Errorf("round %d: alloc failed: %w", r, err)
				}
				// touch the first byte of each block
				touch(alloc.Ptr, 2*arena.BlockSize)
				if err := m.Free(alloc.Ptr, 2*arena.BlockSize, arena.BlockSize, 0, alloc.MemID, alloc.Committed); err != nil {
					return fmt.Errorf("round %d: free failed: %w", r, err)
				}
				m.TryPurgeAll(true, true)
			}

			s := m.Snapshot()
			fmt.Printf("rounds=%d claimed=%d freed=%d commits=%d decommits=%d resets=%d\n",
				rounds, s.BlocksClaimed, s.BlocksFreed, s.Commits, s.Decommits, s.Resets)
			return nil
		},
	}
	cmd.Flags().UintVar(&sizeMiB, "size", 256, "Arena size in MiB")
	cmd.Flags().IntVar(&rounds, "rounds", 10, "Allocation rounds")
	cmd.Flags().BoolVar(&purge, "decommit", true, "Decommit (instead of reset) on purge")
	return cmd
}

func newNumaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "numa",
		Short: "Report NUMA topology as seen by the allocator",
		RunE: func(cmd *cobra.Command, args []string) error {
			mem := osmem.New()
			fmt.Printf("nodes: %d\ncurrent: %d\n", mem.NumaNodeCount(), mem.CurrentNumaNode())
			return nil
		},
	}
}
