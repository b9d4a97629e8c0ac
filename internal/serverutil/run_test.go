package serverutil

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type runResult struct {
	addr chan net.Addr
	done chan error
}

func startRun(t *testing.T, ctx context.Context, cfg Config) runResult {
	t.Helper()
	res := runResult{addr: make(chan net.Addr, 1), done: make(chan error, 1)}
	cfg.Logger = quietLogger
	cfg.OnListen = func(addr net.Addr) { res.addr <- addr }
	go func() { res.done <- Run(ctx, cfg) }()
	return res
}

func (r runResult) waitAddr(t *testing.T) net.Addr {
	t.Helper()
	select {
	case addr := <-r.addr:
		return addr
	case err := <-r.done:
		t.Fatalf("run returned before listening: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	return nil
}

func (r runResult) waitDone(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	return nil
}

func TestRunServesAndDrainsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("done"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	run := startRun(t, ctx, Config{Server: &http.Server{Addr: "127.0.0.1:0", Handler: mux}, ShutdownTimeout: 2 * time.Second})
	addr := run.waitAddr(t)

	body := make(chan string, 1)
	go func() {
		resp, err := http.Get("http://" + addr.String() + "/slow")
		if err != nil {
			body <- "error: " + err.Error()
			return
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		body <- string(raw)
	}()

	<-started
	cancel()

	if err := run.waitDone(t); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if got := <-body; got != "done" {
		t.Fatalf("expected in-flight request to complete, got %q", got)
	}
}

func TestRunUsesTLSWhenConfigured(t *testing.T) {
	certFile, keyFile := writeSelfSignedCert(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	run := startRun(t, ctx, Config{
		Server:          &http.Server{Addr: "127.0.0.1:0", Handler: mux},
		ShutdownTimeout: time.Second,
		TLS:             TLSConfig{CertFile: certFile, KeyFile: keyFile},
	})
	addr := run.waitAddr(t)

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
	resp, err := client.Get("https://" + addr.String() + "/")
	if err != nil {
		t.Fatalf("tls request failed: %v", err)
	}
	resp.Body.Close()
	if resp.TLS == nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected TLS response with 204, got %d", resp.StatusCode)
	}

	cancel()
	if err := run.waitDone(t); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
}

func TestRunStartupError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	run := startRun(t, ctx, Config{Server: &http.Server{Addr: listener.Addr().String()}})

	if err := run.waitDone(t); err == nil {
		t.Fatal("expected startup error")
	}
	select {
	case <-run.addr:
		t.Fatal("server unexpectedly reported a listen address")
	default:
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	if err := Run(context.Background(), Config{}); !errors.Is(err, ErrServerRequired) {
		t.Fatalf("expected ErrServerRequired, got %v", err)
	}
	err := Run(context.Background(), Config{
		Server: &http.Server{Addr: "127.0.0.1:0"},
		TLS:    TLSConfig{CertFile: "cert.pem"},
	})
	if err == nil {
		t.Fatal("expected error for half-configured TLS")
	}
}

func writeSelfSignedCert(t *testing.T) (string, string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certPath, keyPath
}
