package wasmhandler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay 是文件事件合并窗口，窗口内的多次写入只触发一次重新加载。
const DefaultReloadDelay = 100 * time.Millisecond

// Watch 监听模块文件并在其被写入或替换后重新加载。
//
// 监听的是文件所在目录，因此编辑器的"写临时文件再重命名"也能被识别。
// 重新加载失败时保留当前模块并记录错误。ctx 取消后停止监听。
//
// 参数：
//   - ctx: 控制监听生命周期
//   - path: 模块文件路径
//   - onReload: 每次重新加载后回调，err 为加载结果，可为 nil
//
// 返回：
//   - error: 创建监听器失败时返回错误
func (h *Handler) Watch(ctx context.Context, path string, onReload func(err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	target := filepath.Clean(path)
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		err := h.LoadFile(ctx, path)
		if err != nil {
			h.logger.WithError(err).WithField("source", path).Error("Failed to reload wasm module")
		}
		if onReload != nil {
			onReload(err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				mu.Unlock()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				h.logger.WithField("source", path).Debug("Wasm module changed")
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(DefaultReloadDelay, reload)
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.logger.WithError(err).Warn("Watcher error")
			}
		}
	}()
	return nil
}
