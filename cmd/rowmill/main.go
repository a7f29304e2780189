package main

import (
	"fmt"
	"log"

	"github.com/fatih/color"
	"github.com/fulldump/goconfig"

	"github.com/rowmill/rowmill/rel"
	"github.com/rowmill/rowmill/rel/executor"
	"github.com/rowmill/rowmill/rel/expr"
	"github.com/rowmill/rowmill/rel/mempool"
	"github.com/rowmill/rowmill/rel/plan"
	"github.com/rowmill/rowmill/rel/storage"
	"github.com/rowmill/rowmill/rel/table"
)

type config struct {
	Db      string `usage:"badger database path for persisting the demo tables (empty = in-memory only)"`
	Verbose bool   `usage:"show executor trace output"`
}

func main() {
	c := config{}
	goconfig.Read(&c)

	pool := mempool.New()
	defer pool.Release()

	db, err := seedDatabase(pool)
	if err != nil {
		log.Fatalf("Failed to seed demo tables: %v", err)
	}

	if c.Db != "" {
		if err := persist(c.Db, db); err != nil {
			log.Fatalf("Failed to persist demo tables: %v", err)
		}
		fmt.Printf("Persisted demo tables to %s\n", c.Db)
	}

	eng := executor.NewEngine(db, pool, executor.Options{EnableDebugLogging: c.Verbose})
	defer eng.Close()

	heading := color.New(color.FgCyan, color.Bold)
	formatter := executor.NewTableFormatter()

	heading.Println("orders JOIN customers ON orders.customer_id = customers.id")
	out, err := eng.ExecutePlan(eqJoinPlan(), nil)
	if err != nil {
		log.Fatalf("Join failed: %v", err)
	}
	fmt.Println(formatter.FormatTempTable(out))

	heading.Println("orders LEFT JOIN customers with customers.id > ?0 (?0 = 1)")
	out, err = eng.ExecutePlan(rangeJoinPlan(), []rel.Value{rel.NewBigInt(1)})
	if err != nil {
		log.Fatalf("Range join failed: %v", err)
	}
	fmt.Println(formatter.FormatTempTable(out))
}

func seedDatabase(pool *mempool.Pool) (*table.Database, error) {
	db := table.NewDatabase()

	customers := table.NewPooledTable("customers", rel.NewSchema(
		rel.Column{Name: "id", Type: rel.BigInt},
		rel.Column{Name: "name", Type: rel.Varchar},
	), pool)
	if _, err := customers.CreateIndex("customers_pk", []int{0}); err != nil {
		return nil, err
	}
	seed := []struct {
		id   int64
		name string
	}{
		{1, "ada"}, {2, "grace"}, {3, "edsger"},
	}
	for _, s := range seed {
		if err := customers.Insert(rel.NewBigInt(s.id), rel.NewVarchar(s.name)); err != nil {
			return nil, err
		}
	}

	orders := table.NewPooledTable("orders", rel.NewSchema(
		rel.Column{Name: "order_id", Type: rel.BigInt},
		rel.Column{Name: "customer_id", Type: rel.BigInt},
		rel.Column{Name: "item", Type: rel.Varchar},
	), pool)
	orderSeed := []struct {
		id, customer int64
		item         string
	}{
		{100, 1, "keyboard"}, {101, 2, "mouse"}, {102, 2, "monitor"}, {103, 5, "cable"},
	}
	for _, s := range orderSeed {
		if err := orders.Insert(rel.NewBigInt(s.id), rel.NewBigInt(s.customer), rel.NewVarchar(s.item)); err != nil {
			return nil, err
		}
	}

	if err := db.Register(customers); err != nil {
		return nil, err
	}
	if err := db.Register(orders); err != nil {
		return nil, err
	}
	return db, nil
}

func customerProjection() ([]expr.Expression, *rel.Schema) {
	exprs := []expr.Expression{
		expr.NewColumnValue(expr.Outer, 0),
		expr.NewColumnValue(expr.Outer, 1),
	}
	schema := rel.NewSchema(
		rel.Column{Name: "id", Type: rel.BigInt},
		rel.Column{Name: "name", Type: rel.Varchar},
	)
	return exprs, schema
}

func eqJoinPlan() *plan.NestLoopIndexNode {
	projection, outSchema := customerProjection()
	return &plan.NestLoopIndexNode{
		Join:   plan.JoinInner,
		Inputs: []string{"orders"},
		Inline: plan.IndexScanNode{
			TargetTable:  "customers",
			TargetIndex:  "customers_pk",
			SearchKeys:   []expr.Expression{expr.NewColumnValue(expr.Outer, 1)},
			OutputExprs:  projection,
			OutputSchema: outSchema,
			Lookup:       plan.LookupEQ,
			SortDir:      plan.SortInvalid,
		},
	}
}

func rangeJoinPlan() *plan.NestLoopIndexNode {
	projection, outSchema := customerProjection()
	return &plan.NestLoopIndexNode{
		Join:   plan.JoinLeft,
		Inputs: []string{"orders"},
		Inline: plan.IndexScanNode{
			TargetTable:  "customers",
			TargetIndex:  "customers_pk",
			SearchKeys:   []expr.Expression{expr.NewParameter(0)},
			OutputExprs:  projection,
			OutputSchema: outSchema,
			Lookup:       plan.LookupGT,
			SortDir:      plan.SortAsc,
		},
	}
}

func persist(path string, db *table.Database) error {
	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	for _, name := range db.Names() {
		if err := store.SaveTable(db.Table(name)); err != nil {
			return err
		}
	}
	return nil
}
