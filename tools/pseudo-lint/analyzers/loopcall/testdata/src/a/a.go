package a

import "context"

type Store interface {
	FindByFullName(ctx context.Context, name string) (string, error)
	Save(ctx context.Context, name string) error
}

type Classifier interface {
	Classify(ctx context.Context, name string) (string, error)
}

func bad(ctx context.Context, items []string, s Store, c Classifier) {
	for _, item := range items {
		s.FindByFullName(ctx, item) // want "potential N\\+1: FindByFullName called inside loop"
		s.Save(ctx, item)           // want "potential N\\+1: Save called inside loop"
	}
	for i := 0; i < len(items); i++ {
		for range 2 {
			c.Classify(ctx, items[i]) // want "potential N\\+1: Classify called inside loop"
		}
	}
}

func justified(ctx context.Context, items []string, s Store) {
	for _, item := range items {
		//nolint:loopcall // each save depends on the previous one
		s.Save(ctx, item)
		s.FindByFullName(ctx, item) //nolint:loopcall // same line
	}
}

func deferred(ctx context.Context, items []string, s Store) []func() {
	var fns []func()
	for _, item := range items {
		fns = append(fns, func() { s.Save(ctx, item) })
	}
	return fns
}

func good(ctx context.Context, items []string, s Store) {
	for _, item := range items {
		_ = len(item)
	}
	s.Save(ctx, "once")
}
