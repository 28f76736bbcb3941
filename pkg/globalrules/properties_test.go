package globalrules

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jingkaihe/rulesmgr/pkg/settings"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_SaveTwiceKeepsOneRecord(t *testing.T) {
	properties := gopter.NewProperties(nil)
	dir := t.TempDir()
	run := 0

	properties.Property("re-saving a name leaves exactly one record with the latest content", prop.ForAll(
		func(name, first, second string) bool {
			run++
			ctx := context.Background()
			fs := settings.NewFileStore(filepath.Join(dir, fmt.Sprintf("settings-%d.json", run)))
			store := New(fs, WithClock(tickingClock(time.UnixMilli(0))))

			if err := store.Save(ctx, name, first, nil, ""); err != nil {
				return false
			}
			before, err := store.FindByName(ctx, name)
			if err != nil || before == nil {
				return false
			}
			if err := store.Save(ctx, name, second, nil, ""); err != nil {
				return false
			}

			records, err := store.List(ctx)
			if err != nil || len(records) != 1 {
				return false
			}
			return records[0].Content == second && records[0].Timestamp > before.Timestamp
		},
		gen.AlphaString(),
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_EmptySearchReturnsAll(t *testing.T) {
	properties := gopter.NewProperties(nil)
	dir := t.TempDir()
	run := 0

	properties.Property("search with an empty query returns every stored record", prop.ForAll(
		func(names []string) bool {
			run++
			ctx := context.Background()
			fs := settings.NewFileStore(filepath.Join(dir, fmt.Sprintf("settings-%d.json", run)))
			store := New(fs, WithClock(tickingClock(time.UnixMilli(0))))

			for _, n := range names {
				if err := store.Save(ctx, n, n, []string{n}, ""); err != nil {
					return false
				}
			}

			all, err := store.List(ctx)
			if err != nil {
				return false
			}
			found, err := store.Search(ctx, "", "")
			if err != nil || len(found) != len(all) {
				return false
			}
			for i := range all {
				if all[i].Name != found[i].Name {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
