package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joshuapare/arenakit/arena"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newReserveCmd())
	rootCmd.AddCommand(newHugePagesCmd())
}

func newReserveCmd() *cobra.Command {
	var (
		sizeMiB   uint
		commit    bool
		large     bool
		exclusive bool
	)
	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve an OS memory region and register it as an arena",
		Long: `Reserve maps an aligned anonymous region of the given size (rounded
up to whole 32 MiB blocks) and registers it with the process manager.

Example:
  arenactl reserve --size 256
  arenactl reserve --size 1024 --commit --large`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := arena.Default()
			id, err := m.ReserveOSMemory(uintptr(sizeMiB)<<20, commit, large, exclusive)
			if err != nil {
				return fmt.Errorf("reserve failed: %w", err)
			}
			start, size := m.Area(id)
			slog.Debug("registered arena", "id", id, "start", fmt.Sprintf("%#x", start))
			fmt.Printf("arena %d: %d MiB at %#x (%d blocks)\n",
				id, size>>20, start, size/arena.BlockSize)
			return nil
		},
	}
	cmd.Flags().UintVar(&sizeMiB, "size", 256, "Region size in MiB")
	cmd.Flags().BoolVar(&commit, "commit", false, "Commit the region up front")
	cmd.Flags().BoolVar(&large, "large", false, "Allow huge/large OS pages")
	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "Register as an exclusive arena")
	return cmd
}

func newHugePagesCmd() *cobra.Command {
	var (
		pages      int
		node       int
		timeoutMS  int
		interleave int
	)
	cmd := &cobra.Command{
		Use:   "hugepages",
		Short: "Reserve 1 GiB huge pages as an always-committed arena",
		Long: `Hugepages reserves huge OS pages, optionally pinned to one NUMA node
or interleaved over several. A timeout yields a partial reservation.

Example:
  arenactl hugepages --pages 4 --node 0
  arenactl hugepages --pages 8 --interleave 2 --timeout 2000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := arena.Default()
			timeout := time.Duration(timeoutMS) * time.Millisecond
			if interleave > 0 {
				if err := m.ReserveHugePagesInterleave(pages, interleave, timeout); err != nil {
					return fmt.Errorf("interleaved reservation failed: %w", err)
				}
				fmt.Printf("reserved %d huge pages over %d node(s)\n", pages, interleave)
				return nil
			}
			id, err := m.ReserveHugePagesAt(pages, node, timeout, false)
			if err != nil {
				return fmt.Errorf("huge page reservation failed: %w", err)
			}
			start, size := m.Area(id)
			fmt.Printf("arena %d: %d GiB huge pages at %#x\n", id, size>>30, start)
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of 1 GiB pages")
	cmd.Flags().IntVar(&node, "node", -1, "NUMA node to pin to (-1 = any)")
	cmd.Flags().IntVar(&timeoutMS, "timeout", 0, "Reservation timeout in milliseconds")
	cmd.Flags().IntVar(&interleave, "interleave", 0, "Interleave over N NUMA nodes")
	return cmd
}
