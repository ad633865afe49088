package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/neo-catalog/internal/config"
	"github.com/signalsfoundry/neo-catalog/internal/logging"
	"github.com/signalsfoundry/neo-catalog/internal/neoapi"
	"github.com/signalsfoundry/neo-catalog/query"
)

const testNEOs = `pdes,name,pha,diameter
433,Eros,N,16.84
2021 AB,,N,
`

const testCAD = `{
  "fields": ["des", "cd", "dist", "v_rel"],
  "data": [
    ["433", "2020-Jan-01 00:00", "0.15", "5.2"],
    ["2021 AB", "2019-Jun-01 00:00", "0.02", "12.0"]
  ]
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	neos := filepath.Join(dir, "neos.csv")
	cad := filepath.Join(dir, "cad.json")
	if err := os.WriteFile(neos, []byte(testNEOs), 0o600); err != nil {
		t.Fatalf("write NEOs: %v", err)
	}
	if err := os.WriteFile(cad, []byte(testCAD), 0o600); err != nil {
		t.Fatalf("write CAD: %v", err)
	}

	v := config.New()
	v.Set("data.neos", neos)
	v.Set("data.approaches", cad)
	v.Set("server.metrics_addr", "")
	cfg, err := config.Load(v, "", nil)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestCatalogServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := testConfig(t)
	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis, prometheus.NewRegistry())
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()
	client := neoapi.NewClient(conn)

	// The catalog loads before Serve starts; wait for the server to be ready.
	eros, err := client.GetNEO(ctx, "433", grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("GetNEO: %v", err)
	}
	if eros.NameOrEmpty() != "Eros" {
		t.Fatalf("GetNEO name = %q, want Eros", eros.NameOrEmpty())
	}

	if _, err := client.GetNEO(ctx, "missing"); status.Code(err) != codes.NotFound {
		t.Fatalf("GetNEO(missing) code = %v, want NotFound", status.Code(err))
	}

	rows, err := client.Query(ctx, query.Criteria{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 || rows[0].NEO.Designation != "2021 AB" {
		t.Fatalf("Query rows = %+v, want 2021 AB first of 2", rows)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}

func TestRunFailsOnMissingData(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()

	cfg := testConfig(t)
	cfg.Data.NEOs = filepath.Join(t.TempDir(), "absent.csv")
	if err := run(context.Background(), cfg, logging.Noop(), lis, prometheus.NewRegistry()); err == nil {
		t.Fatalf("run succeeded without a NEO file")
	}
}
