package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"

	"github.com/directorio/hub/internal/config"
	"github.com/directorio/hub/internal/datatypes"
	"github.com/directorio/hub/internal/models"
	"github.com/directorio/hub/internal/service"
	"github.com/directorio/hub/pkg/natsutil"
)

const natsFlushTimeout = 5 * time.Second

var (
	errInvalidFlag  = errors.New("invalid flag")
	errNATSDisabled = errors.New("NATS_URL is not set")
)

func reindexCommand(c *cli.Context) error {
	return runIndexOp(c, func(ctx context.Context, e *env, id uuid.UUID) (service.IndexOutcome, error) {
		return e.indexer.Upsert(ctx, id)
	})
}

func removeCommand(c *cli.Context) error {
	return runIndexOp(c, func(ctx context.Context, e *env, id uuid.UUID) (service.IndexOutcome, error) {
		return e.indexer.Remove(ctx, id)
	})
}

func runIndexOp(c *cli.Context, op func(context.Context, *env, uuid.UUID) (service.IndexOutcome, error)) error {
	id, err := parseID("id", c.String("id"))
	if err != nil {
		return err
	}

	e, err := newEnv(c.Context, envOptions{})
	if err != nil {
		return err
	}
	defer e.Close()

	outcome, err := op(c.Context, e, id)
	if err != nil {
		return err
	}

	return printJSON(c, map[string]any{"businessId": id, "outcome": outcome})
}

func backfillCommand(c *cli.Context) error {
	e, err := newEnv(c.Context, envOptions{backfillBatchSize: c.Int("batch-size")})
	if err != nil {
		return err
	}
	defer e.Close()

	var fn service.BackfillFunc

	if c.Bool("queue") {
		inserter, err := e.newJobInserter()
		if err != nil {
			return err
		}

		fn = service.NewIndexJobProvider(inserter).Enqueue
	}

	stats, err := e.indexer.Backfill(c.Context, fn)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	return printJSON(c, stats)
}

func searchCommand(c *cli.Context) error {
	filters, err := filtersFromFlags(c)
	if err != nil {
		return err
	}

	e, err := newEnv(c.Context, envOptions{})
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.engine.SearchText(c.Context, c.String("query"), filters)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	return printJSON(c, result)
}

func askCommand(c *cli.Context) error {
	filters, err := filtersFromFlags(c)
	if err != nil {
		return err
	}

	e, err := newEnv(c.Context, envOptions{})
	if err != nil {
		return err
	}
	defer e.Close()

	answer, err := e.concierge.Ask(c.Context, c.String("query"), filters)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	return printJSON(c, answer)
}

func publishCommand(c *cli.Context) error {
	id, err := parseID("id", c.String("id"))
	if err != nil {
		return err
	}

	eventType, err := datatypes.ParseEventType(c.String("operation"))
	if err != nil {
		return fmt.Errorf("%w: --operation: %w", errInvalidFlag, err)
	}

	cfg, err := config.LoadWithoutAPIKey()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.NATSURL == "" {
		return errNATSDisabled
	}

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("directorio-indexctl"))
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Close()

	msg := service.LifecycleMessage{BusinessID: id.String(), Operation: eventType.Operation()}
	if err := natsutil.Publish(c.Context, nc, cfg.NATSSubject, msg); err != nil {
		return err
	}

	if err := nc.FlushTimeout(natsFlushTimeout); err != nil {
		return fmt.Errorf("flush NATS: %w", err)
	}

	return printJSON(c, map[string]any{"subject": cfg.NATSSubject, "message": msg})
}

func probeCommand(c *cli.Context) error {
	e, err := newEnv(c.Context, envOptions{})
	if err != nil {
		return err
	}
	defer e.Close()

	available := e.projection.IsAvailable(c.Context)

	return printJSON(c, map[string]any{
		"available": available,
		"state":     e.projection.State().String(),
		"table":     e.cfg.VectorIndexTable,
	})
}

func filtersFromFlags(c *cli.Context) (models.QueryFilters, error) {
	filters := models.QueryFilters{Limit: c.Int("limit")}

	targets := []struct {
		flag string
		dst  **uuid.UUID
	}{
		{"organization", &filters.OrganizationID},
		{"category", &filters.CategoryID},
		{"province", &filters.ProvinceID},
		{"city", &filters.CityID},
	}

	for _, t := range targets {
		raw := c.String(t.flag)
		if raw == "" {
			continue
		}

		id, err := parseID(t.flag, raw)
		if err != nil {
			return models.QueryFilters{}, err
		}

		*t.dst = &id
	}

	return filters, nil
}

func parseID(flag, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: --%s must be a UUID: %w", errInvalidFlag, flag, err)
	}

	return id, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
