package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/BearBump/FreightBox/config"
	"github.com/BearBump/FreightBox/internal/cache/rediscache"
	"github.com/BearBump/FreightBox/internal/services/planner"
	"github.com/BearBump/FreightBox/internal/storage/memfreight"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{FreightBox: config.FreightBoxConfig{
		Storage:                   "memory",
		WorkerHTTPAddr:            "127.0.0.1:0",
		WorkerPollIntervalSeconds: 3600,
		SettlementDepartmentID:    1,
	}}
}

func TestDefaultWorkerFactories_Memory(t *testing.T) {
	f := defaultWorkerFactories()

	st, closeFn, err := f.newStorage(testConfig())
	require.NoError(t, err)
	require.Nil(t, closeFn)

	deps, err := st.ListDepartments(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, deps)

	mr := miniredis.RunT(t)
	cfg := testConfig()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Redis.Host, cfg.Redis.Port = mr.Host(), port
	require.NotNil(t, f.newGuard(cfg))
}

func TestRunFreightWorker_RequiresSettlementDepartment(t *testing.T) {
	cfg := testConfig()
	cfg.FreightBox.SettlementDepartmentID = 0

	err := RunFreightWorker(context.Background(), cfg, defaultWorkerFactories(), workerRunOpts{})
	require.ErrorContains(t, err, "settlement_department_id")
}

func TestRunFreightWorker_StorageError(t *testing.T) {
	f := workerFactories{
		newStorage: func(*config.Config) (planner.Store, func(), error) {
			return nil, nil, errors.New("boom")
		},
		newGuard: func(*config.Config) planner.Guard { return nil },
	}
	err := RunFreightWorker(context.Background(), testConfig(), f, workerRunOpts{})
	require.EqualError(t, err, "boom")
}

func TestRunFreightWorker_ContextCanceled_ClosesStorage(t *testing.T) {
	closed := false
	f := workerFactories{
		newStorage: func(*config.Config) (planner.Store, func(), error) {
			st := memfreight.New()
			memfreight.SeedDemo(st)
			return st, func() { closed = true }, nil
		},
		newGuard: func(*config.Config) planner.Guard { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunFreightWorker(ctx, testConfig(), f, workerRunOpts{})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, closed)
}

func TestRunFreightWorker_ServesHTTP(t *testing.T) {
	mr := miniredis.RunT(t)
	sw := filepath.Join(t.TempDir(), "worker.swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	f := workerFactories{
		newStorage: func(*config.Config) (planner.Store, func(), error) {
			st := memfreight.New()
			memfreight.SeedDemo(st)
			return st, nil, nil
		},
		newGuard: func(*config.Config) planner.Guard { return rediscache.NewRateLimiter(mr.Addr()) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunFreightWorker(ctx, testConfig(), f, workerRunOpts{
			swaggerPath: sw,
			onListen:    func(addr string) { addrCh <- addr },
		})
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(2 * time.Second):
		t.Fatal("worker http server did not start")
	}

	do := func(method, path string) (int, []byte) {
		var (
			resp *http.Response
			err  error
		)
		require.Eventually(t, func() bool {
			req, _ := http.NewRequest(method, "http://"+addr+path, nil)
			resp, err = http.DefaultClient.Do(req)
			return err == nil
		}, 2*time.Second, 20*time.Millisecond)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, body
	}

	code, _ := do(http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, code)

	code, body := do(http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "ready")

	code, body = do(http.MethodGet, "/config")
	require.Equal(t, http.StatusOK, code)
	var cfgOut map[string]any
	require.NoError(t, json.Unmarshal(body, &cfgOut))
	require.Equal(t, "memory", cfgOut["storage"])

	code, body = do(http.MethodPost, "/trigger")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "triggered")

	// цикл по триггеру
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var st planner.Stats
		return json.NewDecoder(resp.Body).Decode(&st) == nil && st.TotalCycles >= 1
	}, 2*time.Second, 20*time.Millisecond)

	code, body = do(http.MethodGet, "/swagger.json")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), `"swagger"`)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting worker to stop")
	}
}
