package wasmhandler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriys/edgeharness/internal/domain"
	"github.com/oriys/edgeharness/internal/wrapper"
)

// TestHandler_Watch 测试模块文件变化后的热加载，以及加载失败时保留当前模块。
func TestHandler_Watch(t *testing.T) {
	h := newHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "handler.wasm")
	if err := os.WriteFile(path, module(echoCode), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := h.LoadFile(ctx, path); err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	reloaded := make(chan error, 8)
	if err := h.Watch(ctx, path, func(err error) { reloaded <- err }); err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	wait := func() error {
		t.Helper()
		select {
		case err := <-reloaded:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("module was not reloaded")
			return nil
		}
	}
	req := &domain.HTTPRequest{Method: domain.MethodGet, Path: "/"}

	if err := os.WriteFile(path, []byte("not wasm"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := wait(); err == nil {
		t.Fatal("reloading an invalid module should fail")
	}
	if res := wrapper.Wrap(ctx, h, req, nil); !res.Success {
		t.Errorf("current module should be kept after a failed reload: %#v", res.Error)
	}

	if err := os.WriteFile(path, module(trapCode), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	for {
		if err := wait(); err == nil {
			break
		}
	}
	res := wrapper.Wrap(ctx, h, req, nil)
	if ne, ok := res.Error.(*wrapper.NormalizedError); res.Success || !ok || ne.Name != "WasmTrap" {
		t.Errorf("reloaded module result = %#v", res)
	}
}
