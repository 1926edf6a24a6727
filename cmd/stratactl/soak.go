package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/strata-db/strata/block"
	"github.com/strata-db/strata/btree"
	"github.com/strata-db/strata/track"
)

var (
	soakPages     int
	soakPasses    int
	soakKeys      int
	soakValueMax  int
	soakThreshold int
	soakSeed      int64
)

func init() {
	cmd := newSoakCmd()
	cmd.Flags().IntVar(&soakPages, "pages", 8, "Number of pages to reconcile")
	cmd.Flags().IntVar(&soakPasses, "passes", 20, "Reconciliation passes per page")
	cmd.Flags().IntVar(&soakKeys, "keys", 16, "Keys per page")
	cmd.Flags().IntVar(&soakValueMax, "value-max", 4096, "Maximum value size in bytes")
	cmd.Flags().IntVar(&soakThreshold, "overflow-threshold", 1024,
		"Smallest value size written as an overflow item")
	cmd.Flags().Int64Var(&soakSeed, "seed", 1, "Workload random seed")
	rootCmd.AddCommand(cmd)
}

func newSoakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "soak <store>",
		Short: "Run a reconciliation workload against a fresh store",
		Long: `The soak command creates a store and reconciles a set of pages
through many passes of randomized updates and deletes, reconciling pages
concurrently on independent goroutines. Afterwards it reports allocator
and ledger statistics and checks block accounting for leaks.

Example:
  stratactl soak /tmp/soak.strata --pages 16 --passes 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSoak(args)
		},
	}
}

type soakStats struct {
	mu     sync.Mutex
	ledger track.Stats
}

func (s *soakStats) addLedger(st track.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Adds += st.Adds
	s.ledger.Dedups += st.Dedups
	s.ledger.Reactivations += st.Reactivations
	s.ledger.Resets += st.Resets
	s.ledger.Frees += st.Frees
	s.ledger.Grows += st.Grows
}

func runSoak(args []string) error {
	path := args[0]
	ctx := context.Background()

	mgr, err := block.CreateManager(path, block.StoreOptions{})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer mgr.Close()

	r := btree.NewReconciler(mgr, btree.Options{OverflowThreshold: soakThreshold})
	stats := &soakStats{}

	pages := make([]*btree.Page, soakPages)
	for i := range pages {
		pages[i] = btree.NewPage(track.PageID(i + 1))
	}

	printVerbose("Soaking %d pages for %d passes\n", soakPages, soakPasses)

	var wg sync.WaitGroup
	errs := make([]error, len(pages))
	for i, p := range pages {
		wg.Add(1)
		go func(i int, p *btree.Page) {
			defer wg.Done()
			errs[i] = soakPage(ctx, r, p, stats, soakSeed+int64(i))
		}(i, p)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
	}

	if err := mgr.Sync(ctx); err != nil {
		return fmt.Errorf("failed to sync store: %w", err)
	}
	return reportSoak(mgr, pages, stats)
}

// soakPage runs the per-page workload: random sets and deletes followed
// by a reconciliation pass, repeated.
func soakPage(ctx context.Context, r *btree.Reconciler, p *btree.Page, stats *soakStats, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	for pass := 0; pass < soakPasses; pass++ {
		for k := 0; k < soakKeys; k++ {
			// Leave roughly half the keys untouched each pass so overflow
			// reuse actually happens.
			if pass > 0 && rng.Intn(2) == 0 {
				continue
			}
			key := []byte(fmt.Sprintf("key-%04d", k))
			if rng.Intn(8) == 0 {
				p.Delete(key)
				continue
			}
			value := make([]byte, 1+rng.Intn(soakValueMax))
			rng.Read(value)
			p.Set(key, value)
		}
		if err := r.Reconcile(ctx, p); err != nil {
			return err
		}
	}
	stats.addLedger(p.Modify(track.Options{}).Track.Stats())
	return nil
}

func reportSoak(mgr *block.Manager, pages []*btree.Page, stats *soakStats) error {
	st := mgr.Stats()

	// Accounting: every data block must be free or cited by a final image.
	usable := uint64(mgr.Store().Usable())
	blocksFor := func(size uint32) uint64 { return (uint64(size) + usable - 1) / usable }
	live := uint64(0)
	for _, p := range pages {
		if p.Extent().Valid() {
			live += blocksFor(p.Extent().Size)
		}
		for _, it := range p.Items() {
			if it.Overflow != nil {
				live += blocksFor(it.Overflow.Extent.Size)
			}
		}
	}
	leaked := uint64(st.TotalBlocks-1) - st.FreeBlocks - live

	if jsonOut {
		return printJSON(map[string]interface{}{
			"allocator": st,
			"ledger":    stats.ledger,
			"live":      live,
			"leaked":    leaked,
		})
	}

	p := message.NewPrinter(language.English)
	printInfo("\nAllocator:\n")
	printInfo("  Allocs:        %s\n", p.Sprintf("%d", st.Allocs))
	printInfo("  Frees:         %s\n", p.Sprintf("%d", st.Frees))
	printInfo("  Grow calls:    %s (%s blocks)\n",
		p.Sprintf("%d", st.GrowCalls), p.Sprintf("%d", st.GrowBlocks))
	printInfo("  Bytes written: %s\n", p.Sprintf("%d", st.BytesOut))
	printInfo("  Free blocks:   %s of %s\n",
		p.Sprintf("%d", st.FreeBlocks), p.Sprintf("%d", st.TotalBlocks))
	printInfo("\nLedger:\n")
	printInfo("  Tracked:       %s (%s deduplicated)\n",
		p.Sprintf("%d", stats.ledger.Adds), p.Sprintf("%d", stats.ledger.Dedups))
	printInfo("  Reactivated:   %s\n", p.Sprintf("%d", stats.ledger.Reactivations))
	printInfo("  Resets:        %s\n", p.Sprintf("%d", stats.ledger.Resets))
	printInfo("  Freed:         %s\n", p.Sprintf("%d", stats.ledger.Frees))
	printInfo("\nAccounting:\n")
	printInfo("  Live blocks:   %s\n", p.Sprintf("%d", live))
	printInfo("  Leaked blocks: %s\n", p.Sprintf("%d", leaked))

	if leaked != 0 {
		return fmt.Errorf("accounting mismatch: %d blocks leaked", leaked)
	}
	return nil
}
