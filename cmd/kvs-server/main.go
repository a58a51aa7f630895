// Command kvs-server brings up the TCP key-value service: it parses
// flags with cobra/pflag (the CLI framework used throughout the
// proglog-lineage pack), opens a store.Engine, and serves requests from a
// thread pool. The flag surface is defined in newRootCmd below.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arrowkv/kvs/internal/diag"
	"github.com/arrowkv/kvs/internal/engine"
	"github.com/arrowkv/kvs/internal/engine/btree"
	"github.com/arrowkv/kvs/internal/server"
	"github.com/arrowkv/kvs/internal/store"
	"github.com/arrowkv/kvs/internal/threadpool"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr       string
		engineName string
		poolName   string
		numThreads int
		diagAddr   string
		dir        string
	)

	cmd := &cobra.Command{
		Use:     "kvs-server",
		Short:   "Key-value storage server",
		Version: "0.1.0",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr, engineName, poolName, numThreads, diagAddr, dir)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "127.0.0.1:4000", "server address with format IP:PORT")
	flags.StringVar(&engineName, "engine", "kvs", "engine for key-value storage: kvs or bolt")
	flags.StringVar(&poolName, "thread-pool", "sharedq", "worker pool implementation: sharedq or naive")
	flags.IntVar(&numThreads, "num-threads", 4, "number of workers in the shared-queue pool")
	flags.StringVar(&diagAddr, "diag-addr", "127.0.0.1:4001", "diagnostic HTTP address for /healthz and /stats")
	flags.StringVar(&dir, "dir", ".", "store directory")

	return cmd
}

func run(addr, engineName, poolName string, numThreads int, diagAddr, dir string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := store.EnsureEngine(dir, engineName); err != nil {
		return err
	}

	var eng store.Engine
	var nativeEngine *engine.Engine
	switch engineName {
	case "kvs":
		nativeEngine, err = engine.Open(dir, engine.Config{}, log)
		if err != nil {
			return err
		}
		eng = nativeEngine
	case "bolt":
		eng, err = btree.Open(dir)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown engine %q", engineName)
	}
	defer eng.Close()

	var pool threadpool.Pool
	switch poolName {
	case "sharedq":
		pool = threadpool.NewSharedQueue(numThreads, log)
	case "naive":
		pool = threadpool.NewNaive(numThreads)
	default:
		return fmt.Errorf("unknown thread pool %q", poolName)
	}
	defer pool.Shutdown()

	srv, err := server.New(addr, eng, pool, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	if nativeEngine != nil {
		go func() {
			mux := diag.NewMux(nativeEngine)
			log.Infow("diagnostic endpoint listening", "addr", diagAddr)
			if err := http.ListenAndServe(diagAddr, mux); err != nil {
				log.Warnw("diagnostic endpoint stopped", "error", err)
			}
		}()
	}

	log.Infow("storage server starting", "addr", addr, "engine", engineName, "threadPool", poolName)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Infow("shutting down")
		srv.Close()
	}()

	return srv.Serve()
}
