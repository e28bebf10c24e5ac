package common

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
)

const defaultAccountLockTimeout = time.Second * 30
const defaultSubmissionTimeout = time.Second * 60

var (
	// Log is the configured logger
	Log *logger.Logger

	// ListenPort is the port the API binds to
	ListenPort string

	// LedgerAPIHost is the host:port of the ledger gateway, when a remote ledger is configured
	LedgerAPIHost string

	// LedgerAPIScheme is the scheme used to reach the ledger gateway
	LedgerAPIScheme string

	// LedgerProvider is the configured ledger service provider (i.e., memory or rpc)
	LedgerProvider string

	// ProverProvider is the configured zk proof backend provider
	ProverProvider string

	// AccountLockTimeout bounds how long a request waits on a per-account lock
	AccountLockTimeout time.Duration

	// SubmissionTimeout bounds the ledger submission call
	SubmissionTimeout time.Duration

	// ProverConcurrency bounds the number of concurrent proof computations
	ProverConcurrency int
)

func init() {
	godotenv.Load()

	requireLogger()
	requireCounterConfiguration()
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("counter", lvl, endpoint)
}

func requireCounterConfiguration() {
	ListenPort = os.Getenv("PORT")
	if ListenPort == "" {
		ListenPort = "8080"
	}

	LedgerAPIHost = os.Getenv("LEDGER_API_HOST")

	LedgerAPIScheme = os.Getenv("LEDGER_API_SCHEME")
	if LedgerAPIScheme == "" {
		LedgerAPIScheme = "https"
	}

	LedgerProvider = os.Getenv("LEDGER_PROVIDER")
	if LedgerProvider == "" {
		LedgerProvider = "memory"
	}

	ProverProvider = os.Getenv("ZK_PROVER_PROVIDER")
	if ProverProvider == "" {
		ProverProvider = "gnark"
	}

	AccountLockTimeout = defaultAccountLockTimeout
	if os.Getenv("ACCOUNT_LOCK_TIMEOUT") != "" {
		timeout, err := strconv.ParseInt(os.Getenv("ACCOUNT_LOCK_TIMEOUT"), 10, 64)
		if err != nil {
			Log.Panicf("failed to parse ACCOUNT_LOCK_TIMEOUT; %s", err.Error())
		}
		AccountLockTimeout = time.Millisecond * time.Duration(timeout)
	}

	SubmissionTimeout = defaultSubmissionTimeout
	if os.Getenv("SUBMISSION_TIMEOUT") != "" {
		timeout, err := strconv.ParseInt(os.Getenv("SUBMISSION_TIMEOUT"), 10, 64)
		if err != nil {
			Log.Panicf("failed to parse SUBMISSION_TIMEOUT; %s", err.Error())
		}
		SubmissionTimeout = time.Millisecond * time.Duration(timeout)
	}

	ProverConcurrency = runtime.NumCPU()
	if os.Getenv("PROVER_CONCURRENCY") != "" {
		concurrency, err := strconv.Atoi(os.Getenv("PROVER_CONCURRENCY"))
		if err != nil {
			Log.Panicf("failed to parse PROVER_CONCURRENCY; %s", err.Error())
		}
		ProverConcurrency = concurrency
	}
}
