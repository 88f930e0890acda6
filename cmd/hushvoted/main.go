package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/hushvote/hushvote/api"
	"github.com/hushvote/hushvote/fhe/enclave"
	"github.com/hushvote/hushvote/tally"
)

func main() {
	dataDir := flag.String("datadir", filepath.Join(os.TempDir(), "hushvote"), "data directory for the database")
	host := flag.String("host", "0.0.0.0", "API host")
	port := flag.Int("port", 8080, "API port")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	admin := flag.String("admin", "", "admin address for a new voting round")
	duration := flag.Duration("duration", 24*time.Hour, "voting window for a new round, from now")
	contractAddr := flag.String("contract", "0x0000000000000000000000000000000000c0FFee", "contract address ciphertexts are bound to")

	flag.Parse()
	log.Init(*logLevel, "stdout", nil)

	database, err := metadb.New(db.TypePebble, *dataDir)
	if err != nil {
		log.Fatal(err)
	}

	oracle, err := enclave.New(database)
	if err != nil {
		log.Fatal(err)
	}

	address := common.HexToAddress(*contractAddr)

	// reopen an existing round if one is already constructed, otherwise a
	// fresh one is created with the given admin and duration
	contract, err := tally.Open(database, oracle, address, nil)
	if err != nil {
		if *admin == "" {
			log.Fatalf("no existing round and no admin given: %v", err)
		}
		contract, err = tally.New(tally.Config{
			DB:       database,
			Oracle:   oracle,
			Address:  address,
			Admin:    common.HexToAddress(*admin),
			Duration: *duration,
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Infow("new voting round constructed",
			"admin", *admin,
			"duration", duration.String(),
			"contract", address.Hex())
	} else {
		round, err := contract.Round()
		if err != nil {
			log.Fatal(err)
		}
		log.Infow("existing voting round reopened",
			"admin", round.Admin.Hex(),
			"votingEndTime", round.VotingEndTime,
			"initialized", round.Initialized)
	}

	if _, err := api.New(&api.Config{
		Host:            *host,
		Port:            *port,
		Contract:        contract,
		Oracle:          oracle,
		OraclePublicKey: oracle.PublicKey(),
	}); err != nil {
		log.Fatal(err)
	}

	log.Infow("service started, press ctrl+c to stop")
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Infow("received interrupt signal, shutting down")
}
