// Command searchctl runs the search engine offline and manages the catalog.
//
// Usage:
//
//	searchctl search --catalog products.json [--synonyms synonyms.yaml] -q jacket [--category men] [--limit 12]
//	searchctl categories --catalog products.json
//	searchctl import --catalog products.json [--config configs/development.yaml]
//
// search prints the tier result as JSON. import upserts the products into
// PostgreSQL and announces them on the catalog-changes topic.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/synonyms"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tiers"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/internal/searcher/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/storefront-search/pkg/postgres"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "searchctl: %v\n", err)
		os.Exit(1)
	}
}

func catalogFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "catalog",
		Aliases:  []string{"c"},
		Usage:    "Path to a JSON array of products",
		Required: true,
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "searchctl",
		Usage:  "Run storefront search offline and manage the catalog",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:   "search",
				Usage:  "Print the result tiers for a query",
				Action: searchCommand,
				Flags: []cli.Flag{
					catalogFlag(),
					&cli.StringFlag{
						Name:  "synonyms",
						Usage: "YAML synonyms file merged over the built-in table",
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Search text; empty browses the category",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category tag or all",
						Value: "all",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of suggestions",
						Value: tiers.MaxSuggestions,
					},
				},
			},
			{
				Name:   "categories",
				Usage:  "List the catalog's categories",
				Action: categoriesCommand,
				Flags:  []cli.Flag{catalogFlag()},
			},
			{
				Name:   "import",
				Usage:  "Upsert products into PostgreSQL and publish change events",
				Action: importCommand,
				Flags: []cli.Flag{
					catalogFlag(),
					&cli.StringFlag{
						Name:  "config",
						Usage: "Path to config file",
					},
				},
			},
		},
	}
}

// searchOutput is what the search command prints.
type searchOutput struct {
	Query    string        `json:"query"`
	Category string        `json:"category"`
	Outcome  tiers.Outcome `json:"outcome"`
	Tiers    tiers.Result  `json:"tiers"`
}

func searchCommand(c *cli.Context) error {
	products, err := readCatalog(c.String("catalog"))
	if err != nil {
		return err
	}
	table := synonyms.Default()
	if path := c.String("synonyms"); path != "" {
		custom, err := synonyms.Load(path)
		if err != nil {
			return err
		}
		table = table.Merge(custom)
	}

	query, category := c.String("query"), c.String("category")
	builder := tiers.New(ranker.New(tokenizer.NewExpander(table)), tiers.WithSuggestionLimit(c.Int("limit")))
	result := builder.Build(products, query, category)
	return writeJSON(c.App.Writer, searchOutput{
		Query:    query,
		Category: category,
		Outcome:  result.Outcome(query),
		Tiers:    result,
	})
}

func categoriesCommand(c *cli.Context) error {
	products, err := readCatalog(c.String("catalog"))
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, append([]string{"all"}, catalog.Categories(products)...))
}

func importCommand(c *cli.Context) error {
	ctx := c.Context
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("searchctl")

	products, err := readCatalog(c.String("catalog"))
	if err != nil {
		return err
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	store := catalog.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	var publisher catalog.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogChanges)
		defer producer.Close()
		publisher = producer
	}
	if err := catalog.NewImporter(store, publisher).Import(ctx, products); err != nil {
		return err
	}
	log.Info("catalog imported", "products", len(products), "kafka", cfg.Kafka.Enabled)
	return nil
}

func readCatalog(path string) ([]catalog.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return products, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
