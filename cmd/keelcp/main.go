// keelcp streams a table from one SQL database into another through the
// bulk mutation engine. It is both a working copy tool and the reference
// wiring of the library: a cursor-backed record source on the read side, a
// sqlconn pool on the write side and InsertAll or InsertOrUpdateAll driving
// the transfer.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/keeldb/keel"
	"github.com/keeldb/keel/bulk"
	"github.com/keeldb/keel/conn"
	"github.com/keeldb/keel/conn/sqlconn"
	"github.com/keeldb/keel/logging"
)

type options struct {
	sourceDriver string
	sourceDSN    string
	targetDriver string
	targetDSN    string
	table        string
	dbSchema     string
	keys         []string
	mode         string
	progress     time.Duration
	logLevel     string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:     "keelcp",
		Short:   "Copy a table between SQL databases",
		Long:    "keelcp streams every row of a table from a source database into a target database, batching writes into multi-row statements.",
		Version: keel.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopy(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sourceDriver, "source-driver", "", "source driver name (mysql, postgres, sqlserver)")
	cmd.Flags().StringVar(&opts.sourceDSN, "source-dsn", "", "source connection string")
	cmd.Flags().StringVar(&opts.targetDriver, "target-driver", "", "target driver name (mysql, postgres, sqlserver)")
	cmd.Flags().StringVar(&opts.targetDSN, "target-dsn", "", "target connection string")
	cmd.Flags().StringVar(&opts.table, "table", "", "table to copy")
	cmd.Flags().StringVar(&opts.dbSchema, "db-schema", "", "database schema qualifier (optional)")
	cmd.Flags().StringSliceVar(&opts.keys, "key", nil, "primary key column, repeatable (required for upsert mode)")
	cmd.Flags().StringVar(&opts.mode, "mode", "insert", "write mode: insert or upsert")
	cmd.Flags().DurationVar(&opts.progress, "progress", 10*time.Second, "progress report interval, 0 disables")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")

	for _, f := range []string{"source-driver", "source-dsn", "target-driver", "target-dsn", "table"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func runCopy(cmd *cobra.Command, opts *options) error {
	logger := logging.New(logging.ParseLevel(opts.logLevel), os.Stderr)

	if opts.mode != "insert" && opts.mode != "upsert" {
		return errors.Errorf("unknown mode %q, want insert or upsert", opts.mode)
	}
	if opts.mode == "upsert" && len(opts.keys) == 0 {
		return errors.New("upsert mode requires at least one --key column")
	}

	ctx := cmd.Context()

	sourceDB, err := sql.Open(opts.sourceDriver, opts.sourceDSN)
	if err != nil {
		return errors.Wrap(err, "open source database")
	}
	defer sourceDB.Close()

	targetDB, err := sql.Open(opts.targetDriver, opts.targetDSN)
	if err != nil {
		return errors.Wrap(err, "open target database")
	}
	defer targetDB.Close()

	src, err := openTableSource(ctx, sourceDB, conn.ParseDialect(opts.sourceDriver), opts.dbSchema, opts.table, opts.keys, opts.mode == "upsert")
	if err != nil {
		return err
	}
	defer src.Close()

	logger.Info("copy started",
		logging.String("table", opts.table),
		logging.String("mode", opts.mode),
		logging.Int("columns", len(src.schema.Fields)))

	pool := sqlconn.NewPool(targetDB, conn.ParseDialect(opts.targetDriver), sqlconn.WithLogger(logger))
	eng := keel.NewEngine(pool, bulk.WithLogger(logger))

	var callOpts []bulk.CallOption
	if opts.progress > 0 {
		callOpts = append(callOpts, bulk.WithProgress(func(total int64) {
			logger.Info("copy progress", logging.Int64("rows", total))
		}, opts.progress))
	}

	start := time.Now()
	var total int64
	switch opts.mode {
	case "upsert":
		total, err = eng.InsertOrUpdateAll(ctx, src, callOpts...)
	default:
		total, err = eng.InsertAll(ctx, src, callOpts...)
	}
	if err != nil {
		logger.Error("copy failed",
			logging.Int64("rows", total),
			logging.Error("error", err))
		return err
	}

	logger.Info("copy finished",
		logging.Int64("rows", total),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}
