/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/provideplatform/counter/api"
	"github.com/provideplatform/counter/common"
	"github.com/provideplatform/counter/engine"
	"github.com/provideplatform/counter/ledger"
	"github.com/provideplatform/counter/prover"
	"github.com/provideplatform/counter/state"
)

const runloopSleepInterval = 250 * time.Millisecond
const runloopTickInterval = 5000 * time.Millisecond

var (
	cancelF     context.CancelFunc
	closing     uint32
	shutdownCtx context.Context
	sigs        chan os.Signal

	srv *http.Server
)

func main() {
	common.Log.Debug("installing signal handlers for counter API")
	installSignalHandlers()

	runAPI()

	timer := time.NewTicker(runloopTickInterval)
	defer timer.Stop()

	for !shuttingDown() {
		select {
		case <-timer.C:
			// no-op
		case sig := <-sigs:
			common.Log.Debugf("received signal: %s", sig)
			if srv != nil {
				srv.Shutdown(shutdownCtx)
			}
			shutdown()
		case <-shutdownCtx.Done():
			close(sigs)
		default:
			time.Sleep(runloopSleepInterval)
		}
	}

	common.Log.Debug("exiting counter API")
	cancelF()
}

func installSignalHandlers() {
	sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancelF = context.WithCancel(context.Background())
}

func shutdown() {
	if atomic.AddUint32(&closing, 1) == 1 {
		common.Log.Debug("shutting down counter API")
		cancelF()
	}
}

func shuttingDown() bool {
	return atomic.LoadUint32(&closing) > 0
}

func runAPI() {
	backend := prover.BackendFactory(common.StringOrNil(common.ProverProvider))
	if backend == nil {
		common.Log.Panicf("failed to initialize proof backend; provider: %s", common.ProverProvider)
	}

	ledgerService := ledger.ServiceFactory(common.StringOrNil(common.LedgerProvider), backend)
	if ledgerService == nil {
		common.Log.Panicf("failed to initialize ledger service; provider: %s", common.LedgerProvider)
	}

	assembler := prover.NewAssembler(backend, common.ProverConcurrency)
	counters := engine.New(state.NewStore(), ledgerService, assembler)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(provide.CORSMiddleware())
	r.Use(api.AuthMiddleware())

	api.InstallAPI(r, counters)

	r.GET("/status", statusHandler)

	srv = &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%s", common.ListenPort),
		Handler: r,
	}

	go func() {
		common.Log.Debugf("listening on 0.0.0.0:%s", common.ListenPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Log.Panicf("failed to serve counter API; %s", err.Error())
		}
	}()
}

func statusHandler(c *gin.Context) {
	provide.Render(nil, 204, c)
}
