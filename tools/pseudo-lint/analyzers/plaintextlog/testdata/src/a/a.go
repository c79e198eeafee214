package a

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
)

type Entity struct {
	ID            string
	EntityType    string
	FullName      string
	PseudonymFull string
}

func bad(logger *slog.Logger, e *Entity) error {
	logger.Info("entity saved", "id", e.ID, "real", e.FullName) // want `slog.Info receives name field FullName`
	slog.Warn("collision", "name", e.ID)                         // want `slog.Warn uses name-like key "name"`
	log.Printf("assigned %s", e.PseudonymFull)                   // want `log.Printf receives name field PseudonymFull`
	_ = errors.New(e.FullName)                                   // want `errors.New receives name field FullName`
	return fmt.Errorf("duplicate %s", e.FullName)                // want `fmt.Errorf receives name field FullName`
}

func good(logger *slog.Logger, e *Entity, err error) error {
	logger.Info("entity saved", "entity_id", e.ID, "entity_type", e.EntityType)
	fmt.Println(e.FullName)
	ops := map[string]any{"entity_name": e.FullName}
	_ = ops
	return fmt.Errorf("saving entity %s: %w", e.ID, err)
}
